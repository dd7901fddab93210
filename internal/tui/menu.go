// Package tui implements the interactive menu shown after login. It gathers a
// single selection (plus export parameters when needed) and hands control back
// to the command layer, which owns the actual work.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/guildexport/guildexport/internal/exporter"
)

// Action identifies what the user picked from the menu.
type Action int

const (
	ActionWhoami Action = iota
	ActionGuilds
	ActionExport
	ActionLogout
	ActionQuit
)

var menuEntries = []struct {
	label  string
	action Action
}{
	{"Who am I?", ActionWhoami},
	{"List my guilds", ActionGuilds},
	{"Export a channel", ActionExport},
	{"Logout", ActionLogout},
	{"Exit", ActionQuit},
}

var formatEntries = []struct {
	label  string
	format exporter.Format
}{
	{"JSON", exporter.FormatJSON},
	{"HTML (dark)", exporter.FormatHTMLDark},
	{"HTML (light)", exporter.FormatHTMLLight},
	{"CSV", exporter.FormatCSV},
}

// ExportRequest carries the parameters collected by the export form.
type ExportRequest struct {
	ChannelID     string
	Format        exporter.Format
	DownloadMedia bool
}

// Selection is the outcome of one menu round.
type Selection struct {
	Action Action
	Export *ExportRequest
}

// Run displays the menu and blocks until the user makes a selection.
func Run(username string) (*Selection, error) {
	model, err := tea.NewProgram(newMenuModel(username)).Run()
	if err != nil {
		return nil, err
	}
	m, ok := model.(menuModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", model)
	}
	if m.aborted {
		return &Selection{Action: ActionQuit}, nil
	}
	return &m.selection, nil
}

// Menu modes. The export flow walks through channel, format and media before
// the program quits with a completed selection.
const (
	modeMenu = iota
	modeExportChannel
	modeExportFormat
	modeExportMedia
)

type menuModel struct {
	username string
	mode     int
	cursor   int

	channelInput textinput.Model
	formatCursor int

	selection Selection
	aborted   bool
}

func newMenuModel(username string) menuModel {
	ti := textinput.New()
	ti.Placeholder = "channel id"
	ti.CharLimit = 32
	ti.Prompt = promptStyle.Render("> ")
	return menuModel{username: username, channelInput: ti}
}

func (m menuModel) Init() tea.Cmd { return nil }

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	case "esc":
		if m.mode != modeMenu {
			m.mode = modeMenu
			return m, nil
		}
		m.aborted = true
		return m, tea.Quit
	}

	switch m.mode {
	case modeMenu:
		return m.updateMenu(keyMsg)
	case modeExportChannel:
		return m.updateExportChannel(keyMsg)
	case modeExportFormat:
		return m.updateExportFormat(keyMsg)
	case modeExportMedia:
		return m.updateExportMedia(keyMsg)
	}
	return m, nil
}

func (m menuModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(menuEntries)-1 {
			m.cursor++
		}
	case "enter":
		action := menuEntries[m.cursor].action
		if action == ActionExport {
			m.mode = modeExportChannel
			m.channelInput.SetValue("")
			m.channelInput.Focus()
			return m, textinput.Blink
		}
		m.selection = Selection{Action: action}
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) updateExportChannel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		if strings.TrimSpace(m.channelInput.Value()) == "" {
			return m, nil
		}
		m.mode = modeExportFormat
		m.formatCursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.channelInput, cmd = m.channelInput.Update(msg)
	return m, cmd
}

func (m menuModel) updateExportFormat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.formatCursor > 0 {
			m.formatCursor--
		}
	case "down", "j":
		if m.formatCursor < len(formatEntries)-1 {
			m.formatCursor++
		}
	case "enter":
		m.mode = modeExportMedia
	}
	return m, nil
}

func (m menuModel) updateExportMedia(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m.finishExport(true)
	case "n", "N", "enter":
		return m.finishExport(false)
	}
	return m, nil
}

func (m menuModel) finishExport(media bool) (tea.Model, tea.Cmd) {
	m.selection = Selection{
		Action: ActionExport,
		Export: &ExportRequest{
			ChannelID:     strings.TrimSpace(m.channelInput.Value()),
			Format:        formatEntries[m.formatCursor].format,
			DownloadMedia: media,
		},
	}
	return m, tea.Quit
}

func (m menuModel) View() string {
	var b strings.Builder

	title := "guildexport"
	if m.username != "" {
		title = fmt.Sprintf("guildexport - %s", m.username)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	switch m.mode {
	case modeMenu:
		for i, entry := range menuEntries {
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("> " + entry.label))
			} else {
				b.WriteString(itemStyle.Render("  " + entry.label))
			}
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("up/down: move • enter: select • esc: quit"))
	case modeExportChannel:
		b.WriteString("Channel to export\n\n")
		b.WriteString(m.channelInput.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: continue • esc: back"))
	case modeExportFormat:
		b.WriteString("Export format\n\n")
		for i, entry := range formatEntries {
			if i == m.formatCursor {
				b.WriteString(selectedStyle.Render("> " + entry.label))
			} else {
				b.WriteString(itemStyle.Render("  " + entry.label))
			}
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("up/down: move • enter: select • esc: back"))
	case modeExportMedia:
		b.WriteString("Download media attachments? (y/N)\n")
		b.WriteString(helpStyle.Render("y: yes • n/enter: no • esc: back"))
	}

	b.WriteString("\n")
	return b.String()
}
