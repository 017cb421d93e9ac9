package update

import (
	"fmt"

	bkey "github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/dayplan/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []bkey.Binding
	full  [][]bkey.Binding
}

func (k helpKeyMap) ShortHelp() []bkey.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]bkey.Binding { return k.full }

func (m Model) renderHelpView() string {
	bindings := m.helpBindings()
	var plain []string
	for _, kb := range m.componentBindings() {
		plain = append(plain, fmt.Sprintf("- %s: %s", kb.Key, kb.Action))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Component: string(m.Active),
		Bindings:  plain,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]bkey.Binding{bindings},
		}),
	})
}

func (m Model) globalBindings() []KeyBinding {
	return []KeyBinding{
		{Key: m.Keys.PrevDay + "/" + m.Keys.NextDay, Action: "previous / next day"},
		{Key: m.Keys.Today, Action: "jump to today"},
		{Key: m.Keys.Palette, Action: "open command palette"},
		{Key: m.Keys.Help, Action: "toggle help panel"},
		{Key: m.Keys.Quit, Action: "quit"},
	}
}

// componentBindings lists what the active overlay accepts.
func (m Model) componentBindings() []KeyBinding {
	switch m.Active {
	case ComponentDetails:
		return []KeyBinding{
			{Key: "esc", Action: "close"},
			{Key: m.Keys.Full, Action: "edit"},
			{Key: m.Keys.Menu, Action: "actions"},
		}
	case ComponentLongPressMenu:
		return []KeyBinding{
			{Key: "j/k", Action: "move"},
			{Key: "enter", Action: "run action"},
			{Key: "esc", Action: "close"},
		}
	case ComponentQuickEdit:
		return []KeyBinding{
			{Key: "enter", Action: "save duration"},
			{Key: "esc", Action: "cancel"},
		}
	case ComponentFullEdit:
		return []KeyBinding{
			{Key: "tab/shift+tab", Action: "next / previous field"},
			{Key: "enter", Action: "save (outside notes)"},
			{Key: "ctrl+s", Action: "save"},
			{Key: "esc", Action: "cancel"},
		}
	default:
		return []KeyBinding{
			{Key: "j/k", Action: "move selection"},
			{Key: m.Keys.Details, Action: "details"},
			{Key: m.Keys.Menu, Action: "task actions"},
			{Key: m.Keys.Quick, Action: "edit duration"},
			{Key: m.Keys.Full, Action: "edit task"},
			{Key: m.Keys.Insert, Action: "insert after"},
			{Key: m.Keys.Toggle, Action: "toggle done"},
			{Key: m.Keys.Delete, Action: "delete"},
		}
	}
}

func (m Model) helpBindings() []bkey.Binding {
	all := append(m.globalBindings(), m.componentBindings()...)
	out := make([]bkey.Binding, 0, len(all))
	for _, kb := range all {
		out = append(out, bkey.NewBinding(bkey.WithKeys(kb.Key), bkey.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
