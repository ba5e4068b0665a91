package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/franzhentze92/druma-chat/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// and standalone alternative to PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/druma.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/druma.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS applications (
		id TEXT PRIMARY KEY,
		pet_id TEXT NOT NULL,
		adopter_id TEXT,
		shelter_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL UNIQUE,
		adopter_id TEXT NOT NULL,
		shelter_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateApplication creates a new adoption application record.
func (s *SQLiteStore) CreateApplication(ctx context.Context, petID uuid.UUID, adopterID, shelterID *uuid.UUID, status string) (*models.Application, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (id, pet_id, adopter_id, shelter_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), petID.String(), uuidPtrString(adopterID), uuidPtrString(shelterID), status, now, now)
	if err != nil {
		return nil, err
	}
	return &models.Application{
		ID:        id,
		PetID:     petID,
		AdopterID: adopterID,
		ShelterID: shelterID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetApplication retrieves an application by ID.
func (s *SQLiteStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var (
		app                 models.Application
		idStr, petStr       string
		adopterStr, shelStr sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pet_id, adopter_id, shelter_id, status, created_at, updated_at
		FROM applications WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&petStr,
		&adopterStr,
		&shelStr,
		&app.Status,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	app.ID, _ = uuid.Parse(idStr)
	app.PetID, _ = uuid.Parse(petStr)
	app.AdopterID = parseUUIDPtr(adopterStr)
	app.ShelterID = parseUUIDPtr(shelStr)
	return &app, nil
}

// UpdateApplicationStatus sets the status of an application.
func (s *SQLiteStore) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE applications SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UTC(), id.String())
	return err
}

// CreateRoom creates the chat room for an application. The UNIQUE
// constraint on application_id maps constraint violations to
// ErrRoomExists so callers can re-fetch.
func (s *SQLiteStore) CreateRoom(ctx context.Context, applicationID, adopterID, shelterID uuid.UUID) (*models.Room, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, application_id, adopter_id, shelter_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), applicationID.String(), adopterID.String(), shelterID.String(), now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrRoomExists
		}
		return nil, err
	}
	return &models.Room{
		ID:            id,
		ApplicationID: applicationID,
		AdopterID:     adopterID,
		ShelterID:     shelterID,
		CreatedAt:     now,
	}, nil
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.scanRoom(s.db.QueryRowContext(ctx, `
		SELECT id, application_id, adopter_id, shelter_id, created_at
		FROM rooms WHERE id = ?
	`, id.String()))
}

// GetRoomByApplication retrieves the room for an application, if any.
func (s *SQLiteStore) GetRoomByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Room, error) {
	return s.scanRoom(s.db.QueryRowContext(ctx, `
		SELECT id, application_id, adopter_id, shelter_id, created_at
		FROM rooms WHERE application_id = ?
	`, applicationID.String()))
}

// CountRooms returns the total number of rooms.
func (s *SQLiteStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*models.Room, error) {
	var (
		room                        models.Room
		idStr, appStr, adStr, shStr string
	)
	err := row.Scan(&idStr, &appStr, &adStr, &shStr, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.ID, _ = uuid.Parse(idStr)
	room.ApplicationID, _ = uuid.Parse(appStr)
	room.AdopterID, _ = uuid.Parse(adStr)
	room.ShelterID, _ = uuid.Parse(shStr)
	return &room, nil
}

func uuidPtrString(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseUUIDPtr(s sql.NullString) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}
