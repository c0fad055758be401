// Command pagescope is a read-only bubbletea TUI over a heapcore database
// file: it shows buffer-pool frame occupancy (pin counts, dirty bits) and
// the heap's page chain, refreshing on demand.
package main

import (
	"fmt"
	"os"
	"strings"

	"heapcore/pkg/debug/ui"
	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/buffer"
	"heapcore/pkg/storage/disk"
	"heapcore/pkg/storage/heap"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type pageScopeKeyMap struct {
	ui.CommonKeyMap
	Refresh key.Binding
	Tab     key.Binding
}

var pageScopeKeys = pageScopeKeyMap{
	CommonKeyMap: ui.CommonKeys,
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch view"),
	),
}

type scopeModel struct {
	pool   *buffer.Pool
	h      *heap.TableHeap
	view   string // "frames" or "chain"
	cursor int
	frames []buffer.FrameSnapshot
	chain  []heap.PageChainEntry
	err    error
	dbPath string
}

func initialScopeModel(dbPath string, pool *buffer.Pool, h *heap.TableHeap) scopeModel {
	return scopeModel{pool: pool, h: h, view: "frames", dbPath: dbPath}
}

func (m scopeModel) Init() tea.Cmd {
	return refreshCmd(m.pool, m.h)
}

type refreshMsg struct {
	frames []buffer.FrameSnapshot
	chain  []heap.PageChainEntry
	err    error
}

func refreshCmd(pool *buffer.Pool, h *heap.TableHeap) tea.Cmd {
	return func() tea.Msg {
		chain, err := h.PageChain()
		return refreshMsg{frames: pool.Snapshot(), chain: chain, err: err}
	}
}

func (m scopeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.frames = msg.frames
		m.chain = msg.chain
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pageScopeKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, pageScopeKeys.Refresh):
			return m, refreshCmd(m.pool, m.h)
		case key.Matches(msg, pageScopeKeys.Tab):
			if m.view == "frames" {
				m.view = "chain"
			} else {
				m.view = "frames"
			}
			m.cursor = 0
		case key.Matches(msg, pageScopeKeys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, pageScopeKeys.Down):
			limit := len(m.frames)
			if m.view == "chain" {
				limit = len(m.chain)
			}
			if m.cursor < limit-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m scopeModel) View() string {
	if m.err != nil {
		return ui.RenderError(m.err)
	}

	var b strings.Builder
	b.WriteString(ui.RenderTitle("\U0001F4C4", "pagescope") + "\n\n")

	switch m.view {
	case "frames":
		b.WriteString(m.renderFrames())
	case "chain":
		b.WriteString(m.renderChain())
	}

	b.WriteString("\n")
	b.WriteString(ui.RenderStatusBar(fmt.Sprintf(" %s | view: %s | tab: switch | r: refresh | q: quit ", m.dbPath, m.view)))
	return b.String()
}

func (m scopeModel) renderFrames() string {
	var b strings.Builder
	b.WriteString(ui.RenderHeaderWithCount("Buffer pool frames", len(m.frames)) + "\n\n")

	headers := []string{"frame", "page", "resident", "pins", "dirty"}
	widths := []int{6, 10, 9, 5, 6}
	data := make([][]string, len(m.frames))
	for i, f := range m.frames {
		page := "-"
		if f.Resident {
			page = fmt.Sprintf("%d", f.PageID)
		}
		data[i] = []string{
			fmt.Sprintf("%d", f.FrameID),
			page,
			fmt.Sprintf("%t", f.Resident),
			fmt.Sprintf("%d", f.PinCount),
			fmt.Sprintf("%t", f.Dirty),
		}
	}
	b.WriteString(ui.RenderTable(headers, data, widths, m.cursor))
	return b.String()
}

func (m scopeModel) renderChain() string {
	var b strings.Builder
	b.WriteString(ui.RenderHeaderWithCount("Heap page chain", len(m.chain)) + "\n\n")

	headers := []string{"page", "tuples", "next"}
	widths := []int{10, 8, 10}
	data := make([][]string, len(m.chain))
	for i, e := range m.chain {
		next := "-"
		if e.NextPageID.IsValid() {
			next = fmt.Sprintf("%d", e.NextPageID)
		}
		data[i] = []string{
			fmt.Sprintf("%d", e.PageID),
			fmt.Sprintf("%d", e.NumTuples),
			next,
		}
	}
	b.WriteString(ui.RenderTable(headers, data, widths, m.cursor))
	return b.String()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pagescope <db-path>")
		os.Exit(1)
	}
	dbPath := os.Args[1]

	dm, err := disk.Open(primitives.Filepath(dbPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer dm.Close()

	pool := buffer.New(32, dm, 2)
	h := heap.Open("pagescope", pool, 0)

	p := tea.NewProgram(initialScopeModel(dbPath, pool, h), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
