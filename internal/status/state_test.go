package status

import (
	"testing"

	"github.com/minouverse/minouchat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", m.Current())
	}
	if m.Online() {
		t.Error("Online() = true before connect")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		walk []State
	}{
		{[]State{Connecting, Connected}},
		{[]State{Connecting, Connected, Reconnecting, Connecting, Connected}},
		{[]State{Connecting, Reconnecting, Connecting}},
		{[]State{Closed}},
		{[]State{Connecting, Connected, Closed}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, s := range tt.walk {
			if err := m.Transition(s); err != nil {
				t.Fatalf("walk %v: transition to %s failed: %v (current %s)", tt.walk, s, err, m.Current())
			}
		}
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(DISCONNECTED -> CONNECTED) should fail; must dial first")
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s, want DISCONNECTED (should not have changed)", m.Current())
	}
}

func TestClosedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Closed); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Connecting); err == nil {
		t.Error("Transition(CLOSED -> CONNECTING) should fail")
	}
}

func TestOnline(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(Connecting)
	if m.Online() {
		t.Error("Online() = true while CONNECTING")
	}
	_ = m.Transition(Connected)
	if !m.Online() {
		t.Error("Online() = false while CONNECTED")
	}
	_ = m.Transition(Reconnecting)
	if m.Online() {
		t.Error("Online() = true while RECONNECTING")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("socket.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "socket.status_changed" {
		t.Errorf("event kind = %q, want socket.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Disconnected || change.To != Connecting {
		t.Errorf("change = %v -> %v, want DISCONNECTED -> CONNECTING", change.From, change.To)
	}
}
