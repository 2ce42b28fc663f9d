// Package tui is the terminal rendering layer. It only reads hub and mirror
// snapshots and issues control calls; all state lives behind the supervisor.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/wgsim/controller"
	"github.com/wgsim/controller/internal/hub"
	"github.com/wgsim/controller/internal/topology"
	"github.com/wgsim/controller/pkg/network"
)

// Backend is the part of the supervisor the model drives.
type Backend interface {
	Hub() *hub.Hub
	Mirror() *topology.Mirror
	NodeIDs(c network.Category) []network.NodeID
	State() controller.State
	Generation() uint64
	ResetAsync(ctx context.Context) <-chan error

	AddEdge(a, b network.NodeID) error
	SetDropRate(id network.NodeID, rate float32) error
	DropRate(id network.NodeID) (float32, error)
	Crash(id network.NodeID) error
	SendFragment(id network.NodeID) error
	SendAck(id network.NodeID) error
	SendFlood(id network.NodeID) error
	ClientSendMessage(id, dest network.NodeID, body network.ClientBody) error
}

var _ Backend = (*controller.Supervisor)(nil)

// Layout constants
const (
	SidebarWidth = 24
	minLogLines  = 5
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeEdge
	modeDropRate
	modeFile
)

var modePrompts = map[inputMode]string{
	modeEdge:     "Link with node #",
	modeDropRate: "Drop rate (0-1): ",
	modeFile:     "File name: ",
}

type resetDoneMsg struct{ err error }

// entry is one selectable row of the node list.
type entry struct {
	id       network.NodeID
	category network.Category
}

// Model is the bubbletea model of the controller screen.
type Model struct {
	backend Backend
	ctx     context.Context

	nodes    []entry
	cursor   int
	selected entry
	target   int // index into the live responder list for client messages

	mode  inputMode
	input string

	popup  *hub.ContentItem
	status string

	width, height int
}

// NewModel creates a model over b. ctx bounds resets started from the UI.
func NewModel(ctx context.Context, b Backend) Model {
	m := Model{backend: b, ctx: ctx, width: 100, height: 30}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// refresh rebuilds the node list from the engine's live membership and keeps
// the selection on the same node when it still exists.
func (m *Model) refresh() {
	var nodes []entry
	for _, c := range network.Categories {
		for _, id := range m.backend.NodeIDs(c) {
			nodes = append(nodes, entry{id: id, category: c})
		}
	}
	m.nodes = nodes
	if i := slices.Index(m.nodes, m.selected); i >= 0 {
		m.cursor = i
	}
	m.cursor = min(m.cursor, max(len(m.nodes)-1, 0))
	if len(m.nodes) > 0 {
		m.selected = m.nodes[m.cursor]
	}
	if m.popup == nil {
		if item, ok := m.backend.Hub().PopContent(); ok {
			m.popup = &item
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case RepaintMsg:
		m.refresh()
		return m, nil
	case resetDoneMsg:
		if msg.err != nil {
			m.status = "Reset failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Reset complete (generation %d)", m.backend.Generation())
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.handleInput(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.popup != nil {
		switch msg.String() {
		case "esc", "enter", "p":
			m.popup = nil
			m.refresh()
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.selected = m.nodes[m.cursor]
		}
	case "down", "j":
		if m.cursor < len(m.nodes)-1 {
			m.cursor++
			m.selected = m.nodes[m.cursor]
		}
	case "R":
		m.status = "Resetting..."
		return m, m.reset()
	case "x":
		if h := m.backend.Hub(); m.known(h) {
			h.ClearLog(m.selected.id)
		}
	case "X":
		m.backend.Hub().ClearAllLogs()
	case "e":
		m.mode, m.input = modeEdge, ""
	case "d":
		m.mode, m.input = modeDropRate, ""
	case "c":
		m.run(m.backend.Crash(m.selected.id))
	case "f":
		m.run(m.backend.SendFragment(m.selected.id))
	case "a":
		m.run(m.backend.SendAck(m.selected.id))
	case "l":
		m.run(m.backend.SendFlood(m.selected.id))
	case "]":
		m.target++
	case "t":
		m.request(network.ClientBody{Request: network.ReqServerType})
	case "F":
		m.request(network.ClientBody{Request: network.ReqFilesList})
	case "g":
		m.mode, m.input = modeFile, ""
	case "r":
		m.request(network.ClientBody{Request: network.ReqRegistrationToChat})
	case "u":
		m.request(network.ClientBody{Request: network.ReqClientList})
	}
	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode, m.input = modeNormal, ""
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeyEnter:
		mode, input := m.mode, strings.TrimSpace(m.input)
		m.mode, m.input = modeNormal, ""
		m.submit(mode, input)
	}
	return m, nil
}

func (m *Model) submit(mode inputMode, input string) {
	switch mode {
	case modeEdge:
		peer, err := strconv.ParseUint(input, 10, 8)
		if err != nil {
			m.status = fmt.Sprintf("Invalid node id %q", input)
			return
		}
		m.run(m.backend.AddEdge(m.selected.id, network.NodeID(peer)))
	case modeDropRate:
		rate, err := strconv.ParseFloat(input, 32)
		if err != nil {
			m.status = fmt.Sprintf("Invalid drop rate %q", input)
			return
		}
		m.run(m.backend.SetDropRate(m.selected.id, float32(rate)))
	case modeFile:
		m.request(network.ClientBody{Request: network.ReqFile, File: input})
	}
}

// request sends body from the selected client to the current target server.
func (m *Model) request(body network.ClientBody) {
	dest, ok := m.targetServer()
	if !ok {
		m.status = "No server to send to"
		return
	}
	m.run(m.backend.ClientSendMessage(m.selected.id, dest, body))
}

func (m *Model) targetServer() (network.NodeID, bool) {
	servers := m.backend.NodeIDs(network.Responder)
	if len(servers) == 0 {
		return 0, false
	}
	return servers[m.target%len(servers)], true
}

// run records a command outcome in the status line. The hub log already
// carries the node-level wording.
func (m *Model) run(err error) {
	if err != nil {
		m.status = err.Error()
	} else {
		m.status = ""
	}
	m.refresh()
}

func (m Model) reset() tea.Cmd {
	res := m.backend.ResetAsync(m.ctx)
	return func() tea.Msg {
		return resetDoneMsg{err: <-res}
	}
}

// known reports whether the selection exists in h. The hub keeps the node
// set of its Reset; the live list may briefly belong to the next generation.
func (m Model) known(h *hub.Hub) bool {
	if len(m.nodes) == 0 {
		return false
	}
	_, ok := h.Category(m.selected.id)
	return ok
}

func (m Model) View() string {
	header := titleStyle.Render("Simulation Controller") + helpStyle.Render(
		fmt.Sprintf("  %s · generation %d · %d pending", m.backend.State(), m.backend.Generation(), m.backend.Hub().PendingContent()))

	if m.popup != nil {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.renderPopup(), helpStyle.Render("esc close"))
	}

	bodyHeight := max(m.height-4, minLogLines)
	sidebar := sidebarStyle.Width(SidebarWidth).Height(bodyHeight).Render(m.renderSidebar())
	panel := panelStyle.Width(max(m.width-SidebarWidth-6, 20)).Height(bodyHeight).Render(m.renderNode(bodyHeight))
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, panel)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	last := network.Category(-1)
	for i, n := range m.nodes {
		if n.category != last {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(titleStyle.Render(n.category.String()+"s") + "\n")
			last = n.category
		}
		line := fmt.Sprintf("%c%d", n.category.Letter(), n.id)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		if n.category == network.Relay {
			if rate, err := m.backend.DropRate(n.id); err == nil {
				line += helpStyle.Render(fmt.Sprintf(" pdr %.2f", rate))
			}
		}
		b.WriteString(line + "\n")
	}
	if len(m.nodes) == 0 {
		b.WriteString(helpStyle.Render("no nodes"))
	}
	return b.String()
}

func (m Model) renderNode(height int) string {
	h := m.backend.Hub()
	if !m.known(h) {
		return helpStyle.Render("no node selected")
	}
	n := m.selected
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s #%d", n.category, n.id)))
	if neighbours := m.backend.Mirror().Neighbors(n.id); len(neighbours) > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  links %v", neighbours)))
	}
	b.WriteString("\n")
	b.WriteString(renderStats(n.category, h.Stats(n.id)))
	b.WriteString("\n")

	logs := h.Logs(n.id)
	lines := make([]string, 0, len(logs))
	for _, e := range logs {
		for _, l := range strings.Split(e.Text, "\n") {
			lines = append(lines, tagStyle(e.Tag).Render(l))
		}
	}
	room := max(height-4, minLogLines)
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func renderStats(c network.Category, s hub.Stats) string {
	counts := func(arr [network.PacketKinds]uint64) string {
		parts := make([]string, 0, network.PacketKinds)
		for k := network.PacketKind(0); k < network.PacketKinds; k++ {
			parts = append(parts, fmt.Sprintf("%s %d", k, arr[k]))
		}
		return strings.Join(parts, " · ")
	}
	if c == network.Relay {
		return helpStyle.Render(fmt.Sprintf("forwarded: %s\ndropped fragments: %d", counts(s.Forwarded), s.FragmentsDropped))
	}
	return helpStyle.Render(fmt.Sprintf("sent: %s\nreceived: %s\nfragmented: %d · assembled: %d",
		counts(s.Sent), counts(s.Received), s.MessagesFragmented, s.MessagesAssembled))
}

func (m Model) renderPopup() string {
	p := m.popup
	var body string
	if p.Kind == hub.ContentImage {
		body = fmt.Sprintf("%s, %d bytes", p.MIME, len(p.Data))
	} else {
		body = p.Text
	}
	return popupStyle.Render(titleStyle.Render(p.Name) + "\n\n" + body)
}

func (m Model) renderFooter() string {
	if prompt, ok := modePrompts[m.mode]; ok {
		return statusStyle.Render(prompt + m.input + "█")
	}
	help := "↑/↓ select · e link · d drop rate · c crash · f/a/l fragment/ack/flood · t/F/g/r/u client request · ] server · x/X clear · R reset · q quit"
	if dest, ok := m.targetServer(); ok {
		help = fmt.Sprintf("server #%d · %s", dest, help)
	}
	if m.status != "" {
		return statusStyle.Render(m.status) + "\n" + helpStyle.Render(help)
	}
	return helpStyle.Render(help)
}
