package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout sorts lexically in the same order as time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// A second connection to :memory: would see an empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Deploy Operations
// =============================================================================

// deployRow represents a deploy row in the database.
type deployRow struct {
	ID             string `db:"id"`
	Plugin         string `db:"plugin"`
	Version        string `db:"version"`
	ServiceSid     string `db:"service_sid"`
	EnvironmentSid string `db:"environment_sid"`
	AccountSid     string `db:"account_sid"`
	DomainName     string `db:"domain_name"`
	PluginURL      string `db:"plugin_url"`
	IsPublic       bool   `db:"is_public"`
	CreatedAt      string `db:"created_at"`
}

// Record stores a completed deploy.
func (s *SQLiteStore) Record(ctx context.Context, record domain.DeployRecord) error {
	query := `
		INSERT INTO deploys (
			id, plugin, version, service_sid, environment_sid, account_sid,
			domain_name, plugin_url, is_public, created_at
		) VALUES (
			:id, :plugin, :version, :service_sid, :environment_sid, :account_sid,
			:domain_name, :plugin_url, :is_public, :created_at
		)`

	row := deployRow{
		ID:             record.ID,
		Plugin:         record.Plugin,
		Version:        record.Version,
		ServiceSid:     record.ServiceSid,
		EnvironmentSid: record.EnvironmentSid,
		AccountSid:     record.AccountSid,
		DomainName:     record.DomainName,
		PluginURL:      record.PluginURL,
		IsPublic:       record.IsPublic,
		CreatedAt:      record.CreatedAt.UTC().Format(timeLayout),
	}

	_, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deploys.id") {
			return NewStoreError("Record", "deploy", record.ID, "deploy with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("Record", "deploy", record.ID, err.Error(), err)
	}

	return nil
}

// Get returns one deploy by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.DeployRecord, error) {
	query := `SELECT * FROM deploys WHERE id = ?`

	var row deployRow
	err := s.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("Get", "deploy", id, "deploy not found", ErrNotFound)
		}
		return nil, NewStoreError("Get", "deploy", id, err.Error(), err)
	}

	return rowToRecord(&row)
}

// List returns deploys newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]domain.DeployRecord, error) {
	opts = opts.Normalize()

	query := `SELECT * FROM deploys`
	args := []any{}
	if opts.Plugin != "" {
		query += ` WHERE plugin = ?`
		args = append(args, opts.Plugin)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []deployRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("List", "deploy", "", err.Error(), err)
	}

	records := make([]domain.DeployRecord, 0, len(rows))
	for _, row := range rows {
		record, err := rowToRecord(&row)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToRecord(row *deployRow) (*domain.DeployRecord, error) {
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRecord", "deploy", row.ID, "invalid created_at", ErrInvalidData)
	}

	return &domain.DeployRecord{
		ID:             row.ID,
		Plugin:         row.Plugin,
		Version:        row.Version,
		ServiceSid:     row.ServiceSid,
		EnvironmentSid: row.EnvironmentSid,
		AccountSid:     row.AccountSid,
		DomainName:     row.DomainName,
		PluginURL:      row.PluginURL,
		IsPublic:       row.IsPublic,
		CreatedAt:      createdAt,
	}, nil
}
