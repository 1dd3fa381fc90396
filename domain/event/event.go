package event

import "rentloop/domain"

// DomainEvent is anything the core publishes to registered sinks.
type DomainEvent interface {
	Name() string
}

// MessageIngested fires when an inbound message lands in a conversation.
type MessageIngested struct {
	Key     string
	Message domain.Message
}

func (MessageIngested) Name() string { return "MessageIngested" }

// MessageSent fires when an optimistic local message is appended after a
// successful transmit.
type MessageSent struct {
	Key     string
	Message domain.Message
}

func (MessageSent) Name() string { return "MessageSent" }

// MessageReconciled fires when a server echo replaces a pending local copy.
type MessageReconciled struct {
	Key     string
	TempID  string
	Message domain.Message
}

func (MessageReconciled) Name() string { return "MessageReconciled" }

// ConnectionOpened fires when the live connection reaches the open state.
type ConnectionOpened struct {
	UserID string
}

func (ConnectionOpened) Name() string { return "ConnectionOpened" }

// ConnectionClosed fires on explicit disconnect or transport failure.
// Reason is empty on a clean close.
type ConnectionClosed struct {
	UserID string
	Reason string
}

func (ConnectionClosed) Name() string { return "ConnectionClosed" }

// BookingUpdated fires after a booking is created or transitioned.
type BookingUpdated struct {
	Booking domain.Booking
}

func (BookingUpdated) Name() string { return "BookingUpdated" }
