package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franzhentze92/druma-chat/internal/models"
)

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateApplication creates a new adoption application record.
func (s *PostgresStore) CreateApplication(ctx context.Context, petID uuid.UUID, adopterID, shelterID *uuid.UUID, status string) (*models.Application, error) {
	app := &models.Application{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO applications (pet_id, adopter_id, shelter_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, pet_id, adopter_id, shelter_id, status, created_at, updated_at
	`, petID, adopterID, shelterID, status).Scan(
		&app.ID,
		&app.PetID,
		&app.AdopterID,
		&app.ShelterID,
		&app.Status,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// GetApplication retrieves an application by ID.
func (s *PostgresStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app := &models.Application{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, pet_id, adopter_id, shelter_id, status, created_at, updated_at
		FROM applications WHERE id = $1
	`, id).Scan(
		&app.ID,
		&app.PetID,
		&app.AdopterID,
		&app.ShelterID,
		&app.Status,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return app, nil
}

// UpdateApplicationStatus sets the status of an application.
func (s *PostgresStore) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE applications SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	return err
}

// CreateRoom creates the chat room for an application. The unique
// constraint on application_id guarantees at most one room per
// application; a violation means another caller won the race and is
// reported as ErrRoomExists so the caller can re-fetch.
func (s *PostgresStore) CreateRoom(ctx context.Context, applicationID, adopterID, shelterID uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (application_id, adopter_id, shelter_id)
		VALUES ($1, $2, $3)
		RETURNING id, application_id, adopter_id, shelter_id, created_at
	`, applicationID, adopterID, shelterID).Scan(
		&room.ID,
		&room.ApplicationID,
		&room.AdopterID,
		&room.ShelterID,
		&room.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrRoomExists
		}
		return nil, err
	}
	return room, nil
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, application_id, adopter_id, shelter_id, created_at
		FROM rooms WHERE id = $1
	`, id).Scan(
		&room.ID,
		&room.ApplicationID,
		&room.AdopterID,
		&room.ShelterID,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetRoomByApplication retrieves the room for an application, if any.
func (s *PostgresStore) GetRoomByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, application_id, adopter_id, shelter_id, created_at
		FROM rooms WHERE application_id = $1
	`, applicationID).Scan(
		&room.ID,
		&room.ApplicationID,
		&room.AdopterID,
		&room.ShelterID,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// CountRooms returns the total number of rooms.
func (s *PostgresStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}
