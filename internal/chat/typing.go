package chat

import (
	"sync"
	"time"

	"github.com/minouverse/minouchat/internal/socket"
	"github.com/minouverse/minouchat/internal/wire"
	"go.uber.org/zap"
)

// Typing implements the typing-indicator sub-protocol for one conversation.
// Everything here is fire-and-forget over the socket: no ack, no retry, no
// persistence. The remote indicator auto-expires so a dropped stop signal
// cannot leave it stuck on.
type Typing struct {
	channel        socket.Channel
	conversationID string
	userID         string
	debounce       time.Duration
	expiry         time.Duration
	onRemote       func(active bool)
	logger         *zap.Logger

	mu           sync.Mutex
	sending      bool
	stopTimer    *time.Timer
	remoteActive bool
	expireTimer  *time.Timer
}

// NewTyping creates the sub-protocol state for one conversation. onRemote is
// called on every observed change of the other participant's indicator; it
// may be nil.
func NewTyping(channel socket.Channel, conversationID, userID string,
	debounce, expiry time.Duration, onRemote func(bool), logger *zap.Logger) *Typing {
	return &Typing{
		channel:        channel,
		conversationID: conversationID,
		userID:         userID,
		debounce:       debounce,
		expiry:         expiry,
		onRemote:       onRemote,
		logger:         logger,
	}
}

// InputActivity notes a local keystroke. The first one emits typing-start;
// the stop signal goes out after the debounce window of inactivity.
func (t *Typing) InputActivity() {
	if !t.channel.Connected() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.sending {
		t.sending = true
		t.emit(true)
	}
	if t.stopTimer != nil {
		t.stopTimer.Stop()
	}
	t.stopTimer = time.AfterFunc(t.debounce, t.stopSending)
}

func (t *Typing) stopSending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.sending {
		return
	}
	t.sending = false
	t.emit(false)
}

// emit sends the typing flag. Caller holds t.mu. Errors are ignored: a lost
// indicator is not worth surfacing.
func (t *Typing) emit(active bool) {
	_ = t.channel.Emit(wire.EventTyping, wire.Typing{
		ConversationID: t.conversationID,
		UserID:         t.userID,
		Typing:         active,
	})
}

// HandleRemote processes an inbound user-typing signal. Signals for other
// conversations or echoed back for ourselves are ignored. A start arms the
// auto-expiry; a stop clears immediately.
func (t *Typing) HandleRemote(sig *wire.Typing) {
	if sig.ConversationID != t.conversationID || sig.UserID == t.userID {
		return
	}
	if !sig.Typing {
		t.clearRemote()
		return
	}

	t.mu.Lock()
	changed := !t.remoteActive
	t.remoteActive = true
	if t.expireTimer != nil {
		t.expireTimer.Stop()
	}
	t.expireTimer = time.AfterFunc(t.expiry, t.clearRemote)
	cb := t.onRemote
	t.mu.Unlock()

	if changed && cb != nil {
		cb(true)
	}
}

func (t *Typing) clearRemote() {
	t.mu.Lock()
	if !t.remoteActive {
		t.mu.Unlock()
		return
	}
	t.remoteActive = false
	if t.expireTimer != nil {
		t.expireTimer.Stop()
		t.expireTimer = nil
	}
	cb := t.onRemote
	t.mu.Unlock()

	if cb != nil {
		cb(false)
	}
}

// RemoteActive reports whether the other participant's indicator is shown.
func (t *Typing) RemoteActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteActive
}

// Stop tears the sub-protocol down: timers cancelled, and a final
// typing-stop goes out if one was owed.
func (t *Typing) Stop() {
	t.mu.Lock()
	if t.stopTimer != nil {
		t.stopTimer.Stop()
		t.stopTimer = nil
	}
	if t.expireTimer != nil {
		t.expireTimer.Stop()
		t.expireTimer = nil
	}
	owed := t.sending
	t.sending = false
	t.remoteActive = false
	if owed {
		t.emit(false)
	}
	t.mu.Unlock()
}
