package report

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when no report has the requested ID.
var ErrNotFound = errors.New("report not found")

// DefaultHistoryLimit is the number of reports kept when no limit is configured.
const DefaultHistoryLimit = 10

// MemoryPath opens a history that lives only as long as the process.
const MemoryPath = ":memory:"

// History is the capped report history. Reports are returned most recent
// first and the oldest are evicted once the cap is exceeded.
type History struct {
	db    *sql.DB
	limit int
	log   *zap.Logger
}

// OpenHistory opens (and migrates) the SQLite history at path.
func OpenHistory(path string, limit int, log *zap.Logger) (*History, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		dsn = path + "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := migrateHistory(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	log.Debug("report history opened", zap.String("path", path), zap.Int("limit", limit))
	return &History{db: db, limit: limit, log: log}, nil
}

func migrateHistory(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close would close db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Limit returns the history cap.
func (h *History) Limit() int {
	return h.limit
}

// Save stores r as the most recent report. Saving an ID that already exists
// replaces it and moves it to the front. Reports past the cap are evicted.
func (h *History) Save(r model.Report) error {
	if r.ID == "" {
		return errors.New("save report: empty id")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Timestamp == 0 {
		r.Timestamp = r.CreatedAt.UnixMilli()
	}
	chartData := string(r.ChartData)
	if chartData == "" {
		chartData = "null"
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reports WHERE id = ?`, r.ID); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO reports
		(id, created_at, timestamp, provider, model, template, content, html, data, chart_data, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(time.RFC3339Nano), r.Timestamp,
		r.Provider, r.Model, r.Template, r.Content, r.HTML, r.Data, chartData, r.Truncated)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM reports WHERE seq NOT IN
		(SELECT seq FROM reports ORDER BY seq DESC LIMIT ?)`, h.limit)
	if err != nil {
		return fmt.Errorf("evict reports: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		h.log.Debug("evicted old reports", zap.Int64("count", n), zap.Int("limit", h.limit))
	}
	return nil
}

// Resave stores an existing report again with a fresh timestamp, making it
// the most recent one.
func (h *History) Resave(id string, now time.Time) (model.Report, error) {
	r, err := h.Get(id)
	if err != nil {
		return model.Report{}, err
	}
	r.Timestamp = now.UnixMilli()
	if err := h.Save(r); err != nil {
		return model.Report{}, err
	}
	return r, nil
}

// List returns all kept reports, most recent first.
func (h *History) List() ([]model.Report, error) {
	rows, err := h.db.Query(`SELECT id, created_at, timestamp, provider, model, template,
		content, html, data, chart_data, truncated FROM reports ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the report with the given ID.
func (h *History) Get(id string) (model.Report, error) {
	row := h.db.QueryRow(`SELECT id, created_at, timestamp, provider, model, template,
		content, html, data, chart_data, truncated FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// Delete removes the report with the given ID.
func (h *History) Delete(id string) error {
	res, err := h.db.Exec(`DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (model.Report, error) {
	var (
		r         model.Report
		createdAt string
		chartData string
	)
	if err := s.Scan(&r.ID, &createdAt, &r.Timestamp, &r.Provider, &r.Model, &r.Template,
		&r.Content, &r.HTML, &r.Data, &chartData, &r.Truncated); err != nil {
		return model.Report{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.Report{}, fmt.Errorf("report %s: created_at: %w", r.ID, err)
	}
	r.CreatedAt = t
	if chartData != "" && chartData != "null" {
		r.ChartData = json.RawMessage(chartData)
	}
	return r, nil
}
