package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"gearbag/internal/model"
	"gearbag/internal/view"
)

// itemRow is one gear item in the list.
type itemRow struct {
	it       model.Item
	identity string
}

func (r itemRow) FilterValue() string { return r.it.Name }

func (r itemRow) Title() string {
	var b strings.Builder

	marker := "  "
	if r.identity != "" && r.it.HasOwner(r.identity) {
		marker = memberStyle.Render("* ")
		if !hasColor() {
			marker = "* "
		}
	}
	b.WriteString(marker)
	b.WriteString(r.it.Name)
	b.WriteString(mutedStyle.Render("  " + r.it.Category))

	owners := "owner"
	if r.it.Owners != 1 {
		owners = "owners"
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d %s", r.it.Owners, owners)))

	if r.identity != "" && r.it.ResolvedNote(r.identity) != "" {
		b.WriteString(mutedStyle.Render("  [note]"))
	}
	return b.String()
}

// categoryRow is one category group in the categories view.
type categoryRow struct {
	g view.CategoryGroup
}

func (r categoryRow) FilterValue() string { return r.g.Category }

func (r categoryRow) Title() string {
	n := len(r.g.Items)
	items := "item"
	if n != 1 {
		items = "items"
	}
	return "  " + r.g.Category + mutedStyle.Render(fmt.Sprintf("  %d %s", n, items))
}

type compactRowDelegate struct {
	normal   lipgloss.Style
	selected lipgloss.Style
}

func newCompactRowDelegate() compactRowDelegate {
	return compactRowDelegate{
		normal: lipgloss.NewStyle(),
		selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236")).
			Bold(true),
	}
}

func (d compactRowDelegate) Height() int  { return 1 }
func (d compactRowDelegate) Spacing() int { return 0 }
func (d compactRowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d compactRowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	contentW := m.Width()
	if contentW < 4 {
		fmt.Fprint(w, "")
		return
	}

	style := d.normal
	if index == m.Index() {
		style = d.selected
	}

	txt := ""
	if t, ok := item.(interface{ Title() string }); ok {
		txt = t.Title()
	} else {
		txt = fmt.Sprint(item)
	}

	line := txt
	lineW := xansi.StringWidth(line)
	if lineW < contentW {
		line += strings.Repeat(" ", contentW-lineW)
	} else if lineW > contentW {
		line = xansi.Cut(line, 0, contentW)
	}

	fmt.Fprint(w, style.Render(line))
}
