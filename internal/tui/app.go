package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"gearbag/internal/model"
	"gearbag/internal/mirror"
	"gearbag/internal/mutate"
	"gearbag/internal/store"
	"gearbag/internal/view"
)

// snapshotChangedMsg fires when the mirror swapped in a new snapshot.
type snapshotChangedMsg struct{}

// opResultMsg reports a finished mutation. The list itself is refreshed by
// the feed, never by the mutation.
type opResultMsg struct {
	verb string
	err  error
}

type promptKind int

const (
	promptNone promptKind = iota
	promptJoinName
	promptJoinCategory
	promptNote
)

type appModel struct {
	st       store.Store
	mir      *mirror.Mirror
	identity string
	dev      bool

	state view.State
	res   view.Result

	list      list.Model
	search    textinput.Model
	searching bool

	prompt      promptKind
	promptInput textinput.Model
	pendingName string
	promptItem  string

	detailID string

	width   int
	height  int
	status  string
	errMsg  string
	feedErr error
}

func newAppModel(st store.Store, mir *mirror.Mirror, identity string, dev bool) appModel {
	l := list.New(nil, newCompactRowDelegate(), 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search name or category"

	prompt := textinput.New()
	prompt.Prompt = "> "

	m := appModel{
		st:          st,
		mir:         mir,
		identity:    identity,
		dev:         dev,
		state:       view.State{}.Normalize(identity),
		list:        l,
		search:      search,
		promptInput: prompt,
	}
	m.refresh()
	return m
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return snapshotChangedMsg{}
	}
}

func (m appModel) Init() tea.Cmd {
	return waitForChange(m.mir.Changed())
}

// refresh re-derives the view from the current mirror snapshot and rebuilds
// the visible rows, keeping the cursor close to where it was.
func (m *appModel) refresh() {
	m.state = m.state.Normalize(m.identity)
	m.res = view.Derive(m.mir.Snapshot(), m.identity, m.state)
	// The mirror fails open; keep showing the stale items, but tell the user
	// the feed is down.
	m.feedErr = m.mir.Err()

	var rows []list.Item
	if m.state.Mode == view.ModeCategories && m.state.SelectedCategory == "" {
		for _, g := range m.res.Groups {
			rows = append(rows, categoryRow{g: g})
		}
	} else {
		for _, it := range m.res.DisplayItems {
			rows = append(rows, itemRow{it: it, identity: m.identity})
		}
	}

	idx := m.list.Index()
	m.list.SetItems(rows)
	if idx >= len(rows) {
		idx = len(rows) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}

	if m.detailID != "" {
		if _, ok := m.findItem(m.detailID); !ok {
			m.detailID = ""
		}
	}
}

func (m *appModel) findItem(id string) (model.Item, bool) {
	for _, it := range m.res.ContextItems {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

func (m *appModel) selectedItem() (model.Item, bool) {
	row, ok := m.list.SelectedItem().(itemRow)
	if !ok {
		return model.Item{}, false
	}
	return row.it, true
}

func (m *appModel) layout() {
	// Header, tabs, footer and the status/input line.
	chrome := 4
	h := m.height - chrome
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.width, h)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case snapshotChangedMsg:
		m.refresh()
		return m, waitForChange(m.mir.Changed())

	case opResultMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		} else {
			m.errMsg = ""
			m.status = msg.verb + " ok"
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.SetValue("")
		m.search.Blur()
		m.state.SearchText = ""
		m.refresh()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	// Live filter: every keystroke re-derives.
	m.state.SearchText = m.search.Value()
	m.refresh()
	return m, cmd
}

func (m appModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompt = promptNone
		m.promptInput.SetValue("")
		m.promptInput.Blur()
		return m, nil
	case "enter":
		val := strings.TrimSpace(m.promptInput.Value())
		switch m.prompt {
		case promptJoinName:
			if val == "" {
				return m, nil
			}
			m.pendingName = val
			m.prompt = promptJoinCategory
			m.promptInput.SetValue("")
			m.promptInput.Placeholder = "category"
			return m, nil
		case promptJoinCategory:
			if val == "" {
				return m, nil
			}
			name := m.pendingName
			m.prompt = promptNone
			m.pendingName = ""
			m.promptInput.SetValue("")
			m.promptInput.Blur()
			return m, m.joinCmd(name, val)
		case promptNote:
			itemID := m.promptItem
			text := m.promptInput.Value()
			m.prompt = promptNone
			m.promptItem = ""
			m.promptInput.SetValue("")
			m.promptInput.Blur()
			return m, m.noteCmd(itemID, text)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

func (m appModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.identity == "" {
			m.errMsg = "sign in to view your bag"
			return m, nil
		}
		if m.state.Context == view.ContextHome {
			m.state.Context = view.ContextExplore
		} else {
			m.state.Context = view.ContextHome
		}
		// Context switches reset the secondary view selection.
		m.state.Mode = view.ModeItems
		m.state.SelectedCategory = ""
		m.detailID = ""
		m.refresh()
		return m, nil

	case "i":
		m.state.Mode = view.ModeItems
		m.state.SelectedCategory = ""
		m.refresh()
		return m, nil
	case "c":
		m.state.Mode = view.ModeCategories
		m.state.SelectedCategory = ""
		m.refresh()
		return m, nil
	case "o":
		m.state.Mode = view.ModeOwners
		m.state.SelectedCategory = ""
		m.refresh()
		return m, nil

	case "/":
		m.searching = true
		m.search.SetValue(m.state.SearchText)
		return m, m.search.Focus()

	case "esc":
		switch {
		case m.detailID != "":
			m.detailID = ""
		case m.state.SelectedCategory != "":
			m.state.SelectedCategory = ""
			m.state.Mode = view.ModeCategories
			m.refresh()
		case m.state.SearchText != "":
			m.state.SearchText = ""
			m.search.SetValue("")
			m.refresh()
		}
		return m, nil

	case "enter":
		if row, ok := m.list.SelectedItem().(categoryRow); ok {
			// Drill into a category: same context, items mode, exact filter.
			m.state.SelectedCategory = row.g.Category
			m.state.Mode = view.ModeItems
			m.refresh()
			return m, nil
		}
		if it, ok := m.selectedItem(); ok {
			m.detailID = it.ID
		}
		return m, nil

	case "a":
		if m.identity == "" {
			m.errMsg = "sign in to add gear"
			return m, nil
		}
		m.prompt = promptJoinName
		m.promptInput.SetValue("")
		m.promptInput.Placeholder = "item name"
		return m, m.promptInput.Focus()

	case "J":
		if m.identity == "" {
			m.errMsg = "sign in to join"
			return m, nil
		}
		if it, ok := m.selectedItem(); ok {
			return m, m.joinCmd(it.Name, it.Category)
		}
		return m, nil

	case "L":
		if m.identity == "" {
			m.errMsg = "sign in to leave"
			return m, nil
		}
		if it, ok := m.selectedItem(); ok {
			return m, m.leaveCmd(it.ID)
		}
		return m, nil

	case "n":
		if m.identity == "" {
			m.errMsg = "sign in to take notes"
			return m, nil
		}
		if it, ok := m.selectedItem(); ok {
			m.prompt = promptNote
			m.promptItem = it.ID
			m.promptInput.SetValue(it.ResolvedNote(m.identity))
			m.promptInput.Placeholder = "note (empty clears)"
			return m, m.promptInput.Focus()
		}
		return m, nil

	case "S":
		snap := m.mir.Snapshot()
		if !m.dev {
			m.errMsg = "seeding is dev-only"
			return m, nil
		}
		if !snap.Loaded || len(snap.Items) > 0 {
			m.errMsg = "seed needs an empty, loaded store"
			return m, nil
		}
		return m, m.seedCmd()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) joinCmd(name, category string) tea.Cmd {
	st, id := m.st, m.identity
	return func() tea.Msg {
		_, err := mutate.Join(context.Background(), st, id, name, category, mutate.JoinOptions{Idempotent: true})
		return opResultMsg{verb: "join", err: err}
	}
}

func (m appModel) leaveCmd(itemID string) tea.Cmd {
	st, id := m.st, m.identity
	return func() tea.Msg {
		_, err := mutate.Leave(context.Background(), st, id, itemID)
		return opResultMsg{verb: "leave", err: err}
	}
}

func (m appModel) noteCmd(itemID, text string) tea.Cmd {
	st, id := m.st, m.identity
	return func() tea.Msg {
		err := mutate.Annotate(context.Background(), st, id, itemID, text)
		return opResultMsg{verb: "note", err: err}
	}
}

func (m appModel) seedCmd() tea.Cmd {
	st := m.st
	return func() tea.Msg {
		err := mutate.SeedDemoData(context.Background(), st)
		return opResultMsg{verb: "seed", err: err}
	}
}

func (m appModel) View() string {
	var b strings.Builder

	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(m.viewTabs())
	b.WriteString("\n")

	switch {
	case m.detailID != "":
		b.WriteString(m.viewDetail())
	default:
		b.WriteString(m.list.View())
	}
	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m appModel) viewHeader() string {
	who := "guest"
	if m.identity != "" {
		who = m.identity
	}
	return headerStyle.Render("gearbag") + mutedStyle.Render("  "+who)
}

func (m appModel) viewTabs() string {
	tab := func(label string, active bool) string {
		if active {
			return tabActive.Render(label)
		}
		return tabStyle.Render(label)
	}

	parts := []string{
		tab("my bag", m.state.Context == view.ContextHome),
		tab("explore", m.state.Context == view.ContextExplore),
		" ",
		tab("items", m.state.Mode == view.ModeItems && m.state.SelectedCategory == ""),
		tab("categories", m.state.Mode == view.ModeCategories || m.state.SelectedCategory != ""),
		tab("owners", m.state.Mode == view.ModeOwners),
	}
	line := strings.Join(parts, "  ")
	if m.state.SelectedCategory != "" {
		line += mutedStyle.Render("  > " + m.state.SelectedCategory)
	}
	return line
}

func (m appModel) viewDetail() string {
	it, ok := m.findItem(m.detailID)
	if !ok {
		return mutedStyle.Render("item no longer available")
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", it.Name)
	fmt.Fprintf(&md, "%s, %d sharing\n", it.Category, it.Owners)
	if note := it.ResolvedNote(m.identity); note != "" {
		fmt.Fprintf(&md, "\n%s\n", note)
	}

	w := m.width
	if w <= 0 {
		w = 80
	}
	return renderMarkdown(md.String(), w)
}

func (m appModel) viewFooter() string {
	if m.searching {
		return m.search.View()
	}
	if m.prompt != promptNone {
		label := ""
		switch m.prompt {
		case promptJoinName:
			label = "add gear, name: "
		case promptJoinCategory:
			label = "add gear, category: "
		case promptNote:
			label = "note: "
		}
		return promptStyle.Render(label) + m.promptInput.View()
	}

	if m.errMsg != "" {
		return errorStyle.Render(m.errMsg)
	}
	if m.feedErr != nil {
		return errorStyle.Render("feed error: "+m.feedErr.Error()) +
			statusStyle.Render("  showing last known items")
	}

	if !m.res.Loaded {
		return statusStyle.Render("loading...")
	}

	s := m.res.Summary
	stats := fmt.Sprintf("%d items, %d owners, %d categories", s.TotalItems, s.TotalOwners, s.TotalCategories)
	hints := "tab context | i/c/o view | / search | a add | J join | L leave | n note | q quit"
	if m.status != "" {
		stats += "  " + m.status
	}
	return footerStyle.Render(stats + "  " + hints)
}
