package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tripline/booking-backend/internal/models"
)

// TripRepository handles database operations for the trips table
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

// Create creates a new trip with available_seats = total_seats
func (r *TripRepository) Create(trip *models.Trip) error {
	query := `
		INSERT INTO trips (
			id, name, origin, destination, unit_price, currency,
			total_seats, available_seats, status, departure_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at
	`

	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.Status == "" {
		trip.Status = models.TripStatusActive
	}
	trip.AvailableSeats = trip.TotalSeats

	err := r.db.QueryRow(
		query,
		trip.ID, trip.Name, trip.Origin, trip.Destination, trip.UnitPrice, trip.Currency,
		trip.TotalSeats, trip.AvailableSeats, trip.Status, trip.DepartureAt,
	).Scan(&trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	return nil
}

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(tripID string) (*models.Trip, error) {
	query := `
		SELECT id, name, origin, destination, unit_price, currency,
			   total_seats, available_seats, status, departure_at,
			   created_at, updated_at
		FROM trips
		WHERE id = $1
	`

	trip, err := r.scanTrip(r.db.QueryRow(query, tripID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}
	return trip, nil
}

// ListByStatus retrieves trips in the given status, soonest departure first
func (r *TripRepository) ListByStatus(status models.TripStatus) ([]models.Trip, error) {
	query := `
		SELECT id, name, origin, destination, unit_price, currency,
			   total_seats, available_seats, status, departure_at,
			   created_at, updated_at
		FROM trips
		WHERE status = $1
		ORDER BY departure_at
	`

	rows, err := r.db.Query(query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []models.Trip{}
	for rows.Next() {
		trip, err := r.scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *trip)
	}
	return trips, rows.Err()
}

// UpdateStatus updates the trip lifecycle status
func (r *TripRepository) UpdateStatus(tripID string, status models.TripStatus) error {
	query := `UPDATE trips SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(query, tripID, status)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("trip not found")
	}
	return nil
}

// decrementSeatsTx atomically takes qty seats from the trip's inventory.
// The WHERE clause is the serialization point: two concurrent admissions for
// the last seat cannot both pass it. Returns false when the trip is not
// active or has fewer than qty seats left.
func decrementSeatsTx(tx *sqlx.Tx, tripID string, qty int) (bool, error) {
	result, err := tx.Exec(`
		UPDATE trips
		SET available_seats = available_seats - $2, updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND available_seats >= $2`,
		tripID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to decrement seats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// restoreSeatsTx returns qty seats to the trip's inventory. The guard keeps
// available_seats from ever exceeding total_seats; a zero row count here
// means the caller is about to violate the inventory invariant and must
// abort the transaction.
func restoreSeatsTx(tx *sqlx.Tx, tripID string, qty int) (bool, error) {
	result, err := tx.Exec(`
		UPDATE trips
		SET available_seats = available_seats + $2, updated_at = NOW()
		WHERE id = $1
		  AND available_seats + $2 <= total_seats`,
		tripID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to restore seats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// scanTrip scans a single trip
func (r *TripRepository) scanTrip(row scanner) (*models.Trip, error) {
	trip := &models.Trip{}
	err := row.Scan(
		&trip.ID, &trip.Name, &trip.Origin, &trip.Destination, &trip.UnitPrice, &trip.Currency,
		&trip.TotalSeats, &trip.AvailableSeats, &trip.Status, &trip.DepartureAt,
		&trip.CreatedAt, &trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return trip, nil
}
