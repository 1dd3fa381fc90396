//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"rentloop/domain"
	"rentloop/domain/event"
)

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events published by the core components.
// Consumers must tolerate events for conversations or bookings they have
// never seen.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// CredentialSource yields the bearer credential at call time. Callers must
// never cache the returned value across a logout.
type CredentialSource interface {
	Credential() (string, bool)
}

// IdentitySource exposes the current authenticated identity, if any.
type IdentitySource interface {
	Current() (domain.Identity, bool)
}

// SessionListener is notified on login and logout. SessionEnded is called
// synchronously before Logout returns, so implementations must tear down
// inside the call.
type SessionListener interface {
	SessionStarted(identity domain.Identity)
	SessionEnded()
}

// AuthAPI is the authentication surface of the backend. Login and Register
// return the identity plus the bearer token issued for it.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (domain.Identity, string, error)
	Register(ctx context.Context, reg domain.Registration) (domain.Identity, string, error)
	Me(ctx context.Context) (domain.Identity, error)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Identity, error)
}

// BookingAPI is the booking surface of the backend.
type BookingAPI interface {
	ListBookings(ctx context.Context) ([]domain.Booking, error)
	CreateBooking(ctx context.Context, req domain.BookingRequest, totalAmount float64) (domain.Booking, error)
	UpdateBooking(ctx context.Context, id string, status domain.BookingStatus, note string) (domain.Booking, error)
}

// MessageAPI is the persisted-message surface of the backend.
type MessageAPI interface {
	Messages(ctx context.Context, otherUserID string) ([]domain.Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

// Transport is one live duplex connection. Receive blocks until a message
// arrives, the context is cancelled, or the transport fails.
type Transport interface {
	Send(ctx context.Context, out domain.Outbound) error
	Receive(ctx context.Context) (domain.Message, error)
	Close() error
}

// Dialer opens a Transport for an identity.
type Dialer interface {
	Dial(ctx context.Context, identity domain.Identity) (Transport, error)
}
