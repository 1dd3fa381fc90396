package domain

import (
	"math"
	"time"
)

// BookingStatus values match the wire representation.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusApproved  BookingStatus = "approved"
	StatusRejected  BookingStatus = "rejected"
	StatusActive    BookingStatus = "active"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// Statuses lists every booking status in lifecycle order.
var Statuses = []BookingStatus{
	StatusPending, StatusApproved, StatusRejected,
	StatusActive, StatusCompleted, StatusCancelled,
}

// Terminal reports whether no further transition is permitted.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// BookingRole is the side of a booking an identity is acting from.
type BookingRole string

const (
	RoleRenter BookingRole = "renter"
	RoleOwner  BookingRole = "owner"
)

// Booking is one rental agreement. The owner side is never stored on the
// booking; it is whoever is not the renter.
type Booking struct {
	ID          string        `json:"id"`
	ItemID      string        `json:"item_id"`
	RenterID    string        `json:"renter_id"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	TotalAmount float64       `json:"total_amount"`
	Status      BookingStatus `json:"status"`
	Note        string        `json:"message,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Role derives which side of the booking the identity is on.
func (b Booking) Role(identityID string) BookingRole {
	if b.RenterID == identityID {
		return RoleRenter
	}
	return RoleOwner
}

// BookingRequest is the input for creating a booking.
type BookingRequest struct {
	ItemID      string    `json:"item_id" validate:"required"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	PricePerDay float64   `json:"-" validate:"gt=0"`
	Note        string    `json:"message,omitempty"`
}

// transitions is the full table of permitted moves per role. Anything
// absent here is an invalid transition.
var transitions = map[BookingRole]map[BookingStatus][]BookingStatus{
	RoleOwner: {
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusActive, StatusCancelled},
		StatusActive:   {StatusCompleted, StatusCancelled},
	},
	RoleRenter: {
		StatusPending: {StatusCancelled},
	},
}

// CanTransition reports whether role may move a booking from one status to
// another.
func CanTransition(role BookingRole, from, to BookingStatus) bool {
	for _, allowed := range transitions[role][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RentalDays returns the billable day count between two dates, rounding any
// partial day up.
func RentalDays(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}

// RentalAmount computes the total for a date range at a daily price. The
// amount is fixed at creation time; dates are immutable afterwards.
func RentalAmount(pricePerDay float64, start, end time.Time) float64 {
	return pricePerDay * float64(RentalDays(start, end))
}
