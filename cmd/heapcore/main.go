// Command heapcore is a small demo CLI over the storage core: it opens a
// disk-backed buffer pool and table heap, then either inserts tuples read
// from stdin or scans the heap back out.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/buffer"
	"heapcore/pkg/storage/disk"
	"heapcore/pkg/storage/heap"
	"heapcore/pkg/storage/page"
)

func main() {
	dbPath := flag.String("db", "heapcore.db", "path to the backing database file")
	poolSize := flag.Int("pool-size", 16, "number of buffer pool frames")
	k := flag.Int("k", 2, "LRU-K history depth")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: heapcore [-db path] [-pool-size n] [-k depth] <insert|scan>")
		os.Exit(1)
	}

	path := primitives.Filepath(*dbPath)
	dm, err := disk.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer dm.Close()

	pool := buffer.New(*poolSize, dm, *k)
	h, err := openOrCreateHeap(pool, path)
	if err != nil {
		log.Fatalf("open heap: %v", err)
	}

	switch args[0] {
	case "insert":
		if err := runInsert(h, os.Stdin); err != nil {
			log.Fatalf("insert: %v", err)
		}
	case "scan":
		if err := runScan(h); err != nil {
			log.Fatalf("scan: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		os.Exit(1)
	}

	chain, err := h.PageChain()
	if err != nil {
		log.Fatalf("flush: %v", err)
	}
	for _, e := range chain {
		if err := pool.FlushPage(e.PageID); err != nil {
			log.Fatalf("flush page %d: %v", e.PageID, err)
		}
	}
}

// openOrCreateHeap relies on there being no catalog: a brand-new database
// file gets its first page allocated as page 0 by New, and any existing
// file is assumed to already hold that same heap starting at page 0. A
// real deployment would persist the first-page id in a catalog instead.
func openOrCreateHeap(pool *buffer.Pool, dbPath primitives.Filepath) (*heap.TableHeap, error) {
	info, err := dbPath.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return heap.New("heapcore", pool)
	}
	return heap.Open("heapcore", pool, 0), nil
}

func runInsert(h *heap.TableHeap, in *os.File) error {
	scanner := bufio.NewScanner(in)
	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rid, err := h.Insert(line, page.TupleMetadata{})
		if err != nil {
			return fmt.Errorf("line %d: %w", count+1, err)
		}
		fmt.Printf("inserted %s\n", rid)
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Printf("%d tuples inserted\n", count)
	return nil
}

func runScan(h *heap.TableHeap) error {
	it := h.Iterator()
	if err := it.Open(); err != nil {
		return err
	}
	defer it.Close()

	count := 0
	for {
		has, err := it.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		rid, meta, body, err := it.Next()
		if err != nil {
			return err
		}
		if meta.Deleted() {
			continue
		}
		fmt.Printf("%s\t%s\n", rid, body)
		count++
	}
	fmt.Printf("%d live tuples\n", count)
	return nil
}
