package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/store"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	convs []model.Conversation
}

// NewConversationList creates the conversation list table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")
	return &ConversationList{Table: table}
}

// Update refreshes the list with new data.
func (cl *ConversationList) Update(selfID string, convs []model.Conversation) {
	cl.convs = convs
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" With").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, conv := range convs {
		row := i + 1
		peer := conv.Other(selfID)
		name := peer.Username
		if name == "" {
			name = peer.ID
		}
		if conv.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, conv.UnreadCount)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+sanitizeForTerminal(name)).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(conv.LastMessage)).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTime(conv.LastMessageAt)).SetMaxWidth(12))
	}
}

// Selected returns the currently selected conversation and whether one is
// selected.
func (cl *ConversationList) Selected() (model.Conversation, bool) {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.convs) {
		return cl.convs[idx], true
	}
	return model.Conversation{}, false
}

// MessageView displays the ordered log of one conversation. Pending sends
// render with a clock marker, failed ones with a cross; both stay in their
// original append position.
type MessageView struct {
	*tview.TextView
}

// NewMessageView creates the message log view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	return &MessageView{TextView: tv}
}

// SetPeerName updates the title with the other participant's name.
func (mv *MessageView) SetPeerName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", name))
}

// Update re-renders the log, oldest first.
func (mv *MessageView) Update(selfID string, msgs []model.Message) {
	mv.Clear()

	for i := range msgs {
		m := &msgs[i]
		sender := m.SenderID
		if m.SenderID == selfID {
			sender = "You"
		}

		marker := ""
		switch m.Status {
		case model.StatusPending:
			marker = " [::d]○ sending[-:-:-]"
		case model.StatusFailed:
			marker = " [red]✗ failed[-]"
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			sanitizeForTerminal(sender), formatTime(m.SentAt), marker, sanitizeForTerminal(m.Content))
		_, _ = fmt.Fprint(mv, line)
	}

	mv.ScrollToEnd()
}

// Composer is the text input for sending messages.
type Composer struct {
	*tview.InputField
	onSend   func(text string)
	onChange func()
}

// NewComposer creates the message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetChangedFunc(func(text string) {
		if text != "" && c.onChange != nil {
			c.onChange()
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && c.onSend != nil {
			text := c.GetText()
			if text != "" {
				c.onSend(text)
				c.SetText("")
			}
		}
	})

	return c
}

// SetOnSend sets the callback for a completed message.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnChange sets the callback for keystrokes, used to drive the typing
// indicator.
func (c *Composer) SetOnChange(fn func()) {
	c.onChange = fn
}

// StatusBar displays the session name, connection state, and the peer's
// typing indicator.
type StatusBar struct {
	*tview.TextView
	session string
	conn    string
	typing  bool
	flash   string
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetConnection updates the connection state display.
func (sb *StatusBar) SetConnection(state string) {
	sb.conn = state
	sb.render()
}

// SetTyping toggles the peer typing indicator.
func (sb *StatusBar) SetTyping(active bool) {
	sb.typing = active
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := sb.conn
	if conn == "connected" {
		conn = "[green]connected[-]"
	} else if conn != "" {
		conn = "[yellow]" + conn + "[-]"
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.session, conn, time.Now().Format("15:04"))
	if sb.typing {
		line += " | [aqua]typing...[-]"
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}

// SearchView is the full-text search page over the local cache.
type SearchView struct {
	*tview.Flex
	input   *tview.InputField
	results *tview.TextView
	onQuery func(query string)
}

// NewSearchView creates the search page.
func NewSearchView() *SearchView {
	input := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)
	results := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	results.SetBorder(true).SetTitle(" Results ")

	sv := &SearchView{
		Flex:    tview.NewFlex().SetDirection(tview.FlexRow),
		input:   input,
		results: results,
	}
	sv.AddItem(input, 1, 0, true)
	sv.AddItem(results, 0, 1, false)

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			if q := input.GetText(); q != "" {
				sv.onQuery(q)
			}
		}
	})

	return sv
}

// SetOnQuery sets the callback for a submitted query.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// Input returns the query input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results pane.
func (sv *SearchView) Results() *tview.TextView {
	return sv.results
}

// Update renders search results.
func (sv *SearchView) Update(results []store.SearchResult) {
	sv.results.Clear()
	if len(results) == 0 {
		_, _ = fmt.Fprint(sv.results, " no matches\n")
		return
	}
	for _, r := range results {
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(r.SenderID), formatTime(r.SentAt), sanitizeForTerminal(r.Snippet))
		_, _ = fmt.Fprint(sv.results, line)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// sanitizeForTerminal removes codepoints that break tcell rendering: skin
// tone modifiers, zero width joiners, and variation selectors. Multi
// codepoint emoji degrade to their base character, which renders with a
// stable width.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
