// Package booking enforces the rental lifecycle: who may move a booking
// between which statuses, and the derived views over the local set.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"rentloop/contract"
	"rentloop/domain"
	"rentloop/domain/event"
	apperrors "rentloop/errors"
)

var validate = validator.New()

// Service owns the local booking set. Bookings are never deleted, only
// transitioned; terminal statuses are immutable.
type Service struct {
	mu       sync.Mutex
	api      contract.BookingAPI
	who      contract.IdentitySource
	log      *slog.Logger
	sinks    []contract.EventSink
	bookings map[string]domain.Booking
	order    []string
}

func NewService(api contract.BookingAPI, who contract.IdentitySource, log *slog.Logger) *Service {
	return &Service{
		api:      api,
		who:      who,
		log:      log,
		bookings: make(map[string]domain.Booking),
	}
}

// AddSink registers a consumer for BookingUpdated events.
func (s *Service) AddSink(sinks ...contract.EventSink) {
	s.sinks = append(s.sinks, sinks...)
}

// Create validates the request, computes the total amount and submits the
// booking. The amount is fixed here; dates are immutable afterwards.
func (s *Service) Create(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	if err := validate.Struct(req); err != nil {
		return domain.Booking{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if req.EndDate.Before(req.StartDate) {
		return domain.Booking{}, fmt.Errorf("%w: end date before start date", apperrors.ErrValidation)
	}

	total := domain.RentalAmount(req.PricePerDay, req.StartDate, req.EndDate)
	booking, err := s.api.CreateBooking(ctx, req, total)
	if err != nil {
		return domain.Booking{}, err
	}

	s.store(booking)
	s.publish(ctx, event.BookingUpdated{Booking: booking})
	return booking, nil
}

// Transition moves a booking to a target status if the requester's role
// permits it. The transition table is checked locally before the server is
// asked; an invalid move never leaves the client.
func (s *Service) Transition(ctx context.Context, bookingID string, target domain.BookingStatus, note string) (domain.Booking, error) {
	identity, ok := s.who.Current()
	if !ok {
		return domain.Booking{}, apperrors.ErrUnauthorized
	}

	s.mu.Lock()
	current, found := s.bookings[bookingID]
	s.mu.Unlock()
	if !found {
		return domain.Booking{}, fmt.Errorf("%w: %s", apperrors.ErrBookingNotFound, bookingID)
	}

	role := current.Role(identity.ID)
	if !domain.CanTransition(role, current.Status, target) {
		return domain.Booking{}, fmt.Errorf("%w: %s may not move %s from %s to %s",
			apperrors.ErrInvalidTransition, role, bookingID, current.Status, target)
	}

	updated, err := s.api.UpdateBooking(ctx, bookingID, target, note)
	if err != nil {
		return domain.Booking{}, err
	}

	s.store(updated)
	s.publish(ctx, event.BookingUpdated{Booking: updated})
	s.log.Info("Booking transitioned",
		"booking", bookingID, "from", current.Status, "to", updated.Status, "role", role)
	return updated, nil
}

// Refresh replaces the local set with the server's view of the caller's
// bookings.
func (s *Service) Refresh(ctx context.Context) error {
	bookings, err := s.api.ListBookings(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = make(map[string]domain.Booking, len(bookings))
	s.order = s.order[:0]
	for _, b := range bookings {
		s.bookings[b.ID] = b
		s.order = append(s.order, b.ID)
	}
	return nil
}

// Get returns one booking by id.
func (s *Service) Get(bookingID string) (domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	return b, ok
}

// ListByRole filters the local set by which side the identity is on.
func (s *Service) ListByRole(identity domain.Identity, role domain.BookingRole) []domain.Booking {
	return lo.Filter(s.All(), func(b domain.Booking, _ int) bool {
		return b.Role(identity.ID) == role
	})
}

// ListByStatus filters the local set by status.
func (s *Service) ListByStatus(status domain.BookingStatus) []domain.Booking {
	return lo.Filter(s.All(), func(b domain.Booking, _ int) bool {
		return b.Status == status
	})
}

// CountByStatus returns the number of bookings per status. Statuses with no
// bookings are present with a zero count.
func (s *Service) CountByStatus() map[domain.BookingStatus]int {
	counts := make(map[domain.BookingStatus]int, len(domain.Statuses))
	for _, status := range domain.Statuses {
		counts[status] = 0
	}
	for _, b := range s.All() {
		counts[b.Status]++
	}
	return counts
}

// All returns the local bookings in insertion order.
func (s *Service) All() []domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.order, func(id string, _ int) domain.Booking {
		return s.bookings[id]
	})
}

func (s *Service) store(b domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.bookings[b.ID]; !seen {
		s.order = append(s.order, b.ID)
	}
	s.bookings[b.ID] = b
}

func (s *Service) publish(ctx context.Context, e event.DomainEvent) {
	for _, sink := range s.sinks {
		if err := sink.Consume(ctx, e); err != nil {
			s.log.Warn("Booking sink failed", "event", e.Name(), "error", err)
		}
	}
}
