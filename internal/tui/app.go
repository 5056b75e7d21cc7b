// Package tui is the interactive terminal client: a conversation list, a
// message log with live delivery state, and a composer wired into the
// typing sub-protocol.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/chat"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/status"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// App is the TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *ViewModel
	bus       *bus.Bus
	logger    *zap.Logger
	statusBar *StatusBar
	convList  *ConversationList
	msgView   *MessageView
	composer  *Composer
	searchV   *SearchView
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *ViewModel, b *bus.Bus, logger *zap.Logger, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        vm,
		bus:       b,
		logger:    logger,
		statusBar: NewStatusBar(),
		convList:  NewConversationList(),
		msgView:   NewMessageView(),
		composer:  NewComposer(),
		searchV:   NewSearchView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if conv, ok := a.convList.Selected(); ok {
			a.openConversation(conv)
		}
	})

	a.composer.SetOnChange(func() {
		a.vm.InputActivity()
	})

	a.composer.SetOnSend(func(text string) {
		// The pending entry lands in the store before any network attempt
		// and surfaces through the chat.message_upserted redraw; the
		// fallback HTTP call must not stall the UI goroutine.
		go a.vm.Send(a.ctx, text)
	})

	a.searchV.SetOnQuery(func(query string) {
		results, err := a.vm.Search(query)
		if err != nil {
			a.vm.Flash.Set("Search failed: "+err.Error(), 5*time.Second)
			a.statusBar.SetFlash(a.vm.Flash.Get())
			return
		}
		a.searchV.Update(results)
		a.app.SetFocus(a.searchV.Results())
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, true)

	a.pages.AddPage("conversations", a.convList, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("search", a.searchV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat":
				a.closeConversation()
				return nil
			case "search":
				a.pages.SwitchToPage("conversations")
				a.app.SetFocus(a.convList)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q':
				a.app.Stop()
				return nil
			case 's':
				if currentPage == "conversations" {
					a.pages.SwitchToPage("search")
					a.app.SetFocus(a.searchV.Input())
					return nil
				}
			case 'i':
				if currentPage == "chat" {
					a.app.SetFocus(a.composer.InputField)
					return nil
				}
			}
		}

		return event
	})
}

func (a *App) openConversation(conv model.Conversation) {
	// The history fetch can block on the network; keep it off the UI
	// goroutine.
	go func() {
		a.vm.OpenConversation(a.ctx, conv)

		peer := conv.Other(a.vm.SelfID())
		name := peer.Username
		if name == "" {
			name = peer.ID
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetPeerName(name)
			a.msgView.Update(a.vm.SelfID(), a.vm.Messages())
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) closeConversation() {
	a.vm.CloseConversation()
	a.statusBar.SetTyping(false)
	a.pages.SwitchToPage("conversations")
	a.app.SetFocus(a.convList)
}

func (a *App) redrawMessages() {
	if currentPage, _ := a.pages.GetFrontPage(); currentPage == "chat" {
		a.msgView.Update(a.vm.SelfID(), a.vm.Messages())
	}
}

// Run starts the TUI event loop.
func (a *App) Run() error {
	go func() {
		if err := a.vm.LoadConversations(a.ctx); err != nil {
			a.logger.Warn("initial conversation load failed", zap.Error(err))
			a.vm.Flash.Set("Offline: conversation list unavailable", 5*time.Second)
		}
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.vm.SelfID(), a.vm.Conversations())
			a.statusBar.SetFlash(a.vm.Flash.Get())
		})
	}()

	a.watchEvents()
	a.startClockLoop()

	return a.app.Run()
}

// watchEvents drives redraws from the bus instead of polling the backend.
func (a *App) watchEvents() {
	chatCh, unsubChat := a.bus.Subscribe("chat.", 64)
	sockCh, unsubSock := a.bus.Subscribe("socket.status_changed", 16)

	go func() {
		defer unsubChat()
		defer unsubSock()
		for {
			select {
			case evt := <-chatCh:
				a.onChatEvent(evt)
			case evt := <-sockCh:
				if change, ok := evt.Payload.(status.StatusChange); ok {
					a.app.QueueUpdateDraw(func() {
						a.statusBar.SetConnection(strings.ToLower(string(change.To)))
					})
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) onChatEvent(evt bus.Event) {
	switch evt.Kind {
	case "chat.message_upserted", "chat.message_confirmed", "chat.message_received", "chat.send_failed":
		a.app.QueueUpdateDraw(a.redrawMessages)
	case "chat.conversation_updated":
		msg, ok := evt.Payload.(*model.Message)
		if !ok {
			return
		}
		a.vm.ApplySummary(msg)
		a.app.QueueUpdateDraw(func() {
			if currentPage, _ := a.pages.GetFrontPage(); currentPage == "conversations" {
				a.convList.Update(a.vm.SelfID(), a.vm.Conversations())
			}
		})
	case "chat.typing":
		change, ok := evt.Payload.(chat.TypingChange)
		if !ok {
			return
		}
		if change.ConversationID != a.vm.ActiveID() {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetTyping(change.Active)
		})
	}
}

// startClockLoop refreshes the status bar clock and sweeps the typing
// indicator; the remote expiry fires on a timer inside the session, so the
// bar re-checks rather than waiting for an event.
func (a *App) startClockLoop() {
	ticker := time.NewTicker(time.Second)
	go func() {
		for {
			select {
			case <-ticker.C:
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetTyping(a.vm.RemoteTyping())
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
			case <-a.ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.vm.CloseConversation()
	a.app.Stop()
}
