package bus

import "time"

// Event is a domain event published on the bus. Kind is a dotted name
// ("chat.message_confirmed", "socket.status_changed") used for
// namespace-prefix subscription matching.
type Event struct {
	Kind    string
	At      time.Time
	Payload any
}
