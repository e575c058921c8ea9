package models

import (
	"errors"
	"time"
)

// TripStatus represents the lifecycle status of a trip
type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCancelled TripStatus = "cancelled"
	TripStatusCompleted TripStatus = "completed"
	TripStatusArchived  TripStatus = "archived"
)

// Trip represents a scheduled trip with fixed seat inventory
type Trip struct {
	ID             string     `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	Origin         string     `json:"origin" db:"origin"`
	Destination    string     `json:"destination" db:"destination"`
	UnitPrice      float64    `json:"unit_price" db:"unit_price"`
	Currency       string     `json:"currency" db:"currency"`
	TotalSeats     int        `json:"total_seats" db:"total_seats"`
	AvailableSeats int        `json:"available_seats" db:"available_seats"`
	Status         TripStatus `json:"status" db:"status"`
	DepartureAt    time.Time  `json:"departure_at" db:"departure_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsBookable checks whether tickets can still be sold for this trip
func (t *Trip) IsBookable() bool {
	return t.Status == TripStatusActive && t.DepartureAt.After(time.Now())
}

// ReceiptDateWindow returns the window a claimed receipt date must fall into
func (t *Trip) ReceiptDateWindow() (time.Time, time.Time) {
	return t.CreatedAt, t.DepartureAt
}

// Validate checks structural invariants before persisting a trip
func (t *Trip) Validate() error {
	if t.UnitPrice <= 0 {
		return errors.New("unit_price must be positive")
	}
	if t.TotalSeats <= 0 {
		return errors.New("total_seats must be at least 1")
	}
	if t.AvailableSeats < 0 || t.AvailableSeats > t.TotalSeats {
		return errors.New("available_seats must be within [0, total_seats]")
	}
	return nil
}

// CreateTripRequest represents the request to create a trip
type CreateTripRequest struct {
	Name        string  `json:"name" binding:"required"`
	Origin      string  `json:"origin" binding:"required"`
	Destination string  `json:"destination" binding:"required"`
	UnitPrice   float64 `json:"unit_price" binding:"required,gt=0"`
	Currency    string  `json:"currency,omitempty"`
	TotalSeats  int     `json:"total_seats" binding:"required,min=1"`
	DepartureAt string  `json:"departure_at" binding:"required"` // RFC3339
}
