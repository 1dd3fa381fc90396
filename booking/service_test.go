package booking

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rentloop/domain"
	apperrors "rentloop/errors"
	"rentloop/mocks"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return d
}

func newService(t *testing.T) (*Service, *mocks.MockBookingAPI, *mocks.MockIdentitySource) {
	t.Helper()
	ctrl := gomock.NewController(t)
	apiMock := mocks.NewMockBookingAPI(ctrl)
	whoMock := mocks.NewMockIdentitySource(ctrl)
	return NewService(apiMock, whoMock, slog.Default()), apiMock, whoMock
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("computes the total and submits", func(t *testing.T) {
		req := require.New(t)
		svc, apiMock, _ := newService(t)

		request := domain.BookingRequest{
			ItemID:      "item-1",
			StartDate:   day(t, "2024-01-01"),
			EndDate:     day(t, "2024-01-04"),
			PricePerDay: 25,
		}
		created := domain.Booking{
			ID: "b-1", ItemID: "item-1", RenterID: "me",
			TotalAmount: 75, Status: domain.StatusPending,
		}

		apiMock.EXPECT().
			CreateBooking(ctx, request, 75.0).
			Return(created, nil).
			Times(1)

		booking, err := svc.Create(ctx, request)
		req.NoError(err)
		req.Equal(domain.StatusPending, booking.Status)
		req.Equal(75.0, booking.TotalAmount)

		stored, ok := svc.Get("b-1")
		req.True(ok)
		req.Equal(created, stored)
	})

	t.Run("rejects end before start without calling the server", func(t *testing.T) {
		req := require.New(t)
		svc, apiMock, _ := newService(t)

		apiMock.EXPECT().CreateBooking(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Create(ctx, domain.BookingRequest{
			ItemID:      "item-1",
			StartDate:   day(t, "2024-01-04"),
			EndDate:     day(t, "2024-01-01"),
			PricePerDay: 25,
		})
		req.ErrorIs(err, apperrors.ErrValidation)
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		req := require.New(t)
		svc, apiMock, _ := newService(t)

		apiMock.EXPECT().CreateBooking(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Create(ctx, domain.BookingRequest{
			ItemID:    "item-1",
			StartDate: day(t, "2024-01-01"),
			EndDate:   day(t, "2024-01-02"),
		})
		req.ErrorIs(err, apperrors.ErrValidation)
	})
}

func TestService_Transition(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, svc *Service, apiMock *mocks.MockBookingAPI, b domain.Booking) {
		t.Helper()
		apiMock.EXPECT().ListBookings(ctx).Return([]domain.Booking{b}, nil).Times(1)
		require.NoError(t, svc.Refresh(ctx))
	}

	t.Run("owner approves a pending booking", func(t *testing.T) {
		req := require.New(t)
		svc, apiMock, whoMock := newService(t)

		pending := domain.Booking{ID: "b-1", RenterID: "alice", Status: domain.StatusPending}
		seed(t, svc, apiMock, pending)

		whoMock.EXPECT().Current().Return(domain.Identity{ID: "owner"}, true).Times(1)
		approved := pending
		approved.Status = domain.StatusApproved
		apiMock.EXPECT().
			UpdateBooking(ctx, "b-1", domain.StatusApproved, "have fun").
			Return(approved, nil).
			Times(1)

		updated, err := svc.Transition(ctx, "b-1", domain.StatusApproved, "have fun")
		req.NoError(err)
		req.Equal(domain.StatusApproved, updated.Status)
	})

	t.Run("renter may only cancel while pending", func(t *testing.T) {
		req := require.New(t)
		svc, apiMock, whoMock := newService(t)

		pending := domain.Booking{ID: "b-1", RenterID: "alice", Status: domain.StatusPending}
		seed(t, svc, apiMock, pending)

		whoMock.EXPECT().Current().Return(domain.Identity{ID: "alice"}, true).Times(1)
		apiMock.EXPECT().UpdateBooking(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Transition(ctx, "b-1", domain.StatusApproved, "")
		req.ErrorIs(err, apperrors.ErrInvalidTransition)

		// The local booking is left unchanged.
		stored, ok := svc.Get("b-1")
		req.True(ok)
		req.Equal(domain.StatusPending, stored.Status)
	})

	t.Run("terminal bookings never move", func(t *testing.T) {
		req := require.New(t)
		svc, apiMock, whoMock := newService(t)

		done := domain.Booking{ID: "b-1", RenterID: "alice", Status: domain.StatusCompleted}
		seed(t, svc, apiMock, done)

		whoMock.EXPECT().Current().Return(domain.Identity{ID: "owner"}, true).Times(1)
		apiMock.EXPECT().UpdateBooking(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Transition(ctx, "b-1", domain.StatusActive, "")
		req.ErrorIs(err, apperrors.ErrInvalidTransition)
	})

	t.Run("unknown booking id", func(t *testing.T) {
		req := require.New(t)
		svc, apiMock, whoMock := newService(t)

		whoMock.EXPECT().Current().Return(domain.Identity{ID: "owner"}, true).Times(1)
		apiMock.EXPECT().UpdateBooking(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Transition(ctx, "missing", domain.StatusApproved, "")
		req.ErrorIs(err, apperrors.ErrBookingNotFound)
	})
}

func TestService_Views(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, apiMock, _ := newService(t)

	all := []domain.Booking{
		{ID: "b-1", RenterID: "me", Status: domain.StatusPending},
		{ID: "b-2", RenterID: "someone", Status: domain.StatusPending},
		{ID: "b-3", RenterID: "me", Status: domain.StatusActive},
	}
	apiMock.EXPECT().ListBookings(ctx).Return(all, nil).Times(1)
	req.NoError(svc.Refresh(ctx))

	me := domain.Identity{ID: "me"}
	asRenter := svc.ListByRole(me, domain.RoleRenter)
	req.Len(asRenter, 2)
	asOwner := svc.ListByRole(me, domain.RoleOwner)
	req.Len(asOwner, 1)
	req.Equal("b-2", asOwner[0].ID)

	counts := svc.CountByStatus()
	req.Equal(2, counts[domain.StatusPending])
	req.Equal(1, counts[domain.StatusActive])
	req.Equal(0, counts[domain.StatusCancelled])

	req.Len(svc.ListByStatus(domain.StatusPending), 2)
}

func TestService_RefreshReplaces(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, apiMock, _ := newService(t)

	apiMock.EXPECT().ListBookings(ctx).
		Return([]domain.Booking{{ID: "b-1", Status: domain.StatusPending}}, nil).Times(1)
	req.NoError(svc.Refresh(ctx))

	apiMock.EXPECT().ListBookings(ctx).
		Return([]domain.Booking{{ID: "b-2", Status: domain.StatusActive}}, nil).Times(1)
	req.NoError(svc.Refresh(ctx))

	req.Len(svc.All(), 1)
	_, ok := svc.Get("b-1")
	req.False(ok)
}
