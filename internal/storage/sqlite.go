package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-scripts/climate/internal/types"
)

// climateColumns are the SQL column names of types.Schema, in order.
var climateColumns = []string{
	"continent",
	"country",
	"city",
	"month",
	"avg_temp_f",
	"avg_temp_c",
	"min_temp_f",
	"min_temp_c",
	"max_temp_f",
	"max_temp_c",
	"precipitation_in",
	"precipitation_mm",
	"humidity_pct",
	"rainy_days",
	"sun_hours",
}

// Storage is an optional SQLite sink for both stages.
type Storage struct {
	db *sql.DB
}

// NewStorage opens or creates the database and its schema.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

func (s *Storage) initSchema() error {
	var metricCols strings.Builder
	for _, col := range climateColumns[4:] {
		fmt.Fprintf(&metricCols, "\t\t%s TEXT,\n", col)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS urls (
		url_id INTEGER PRIMARY KEY AUTOINCREMENT,
		continent TEXT NOT NULL,
		country TEXT NOT NULL,
		country_url TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		city_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(continent, country, city)
	);

	CREATE TABLE IF NOT EXISTS climate (
		climate_id INTEGER PRIMARY KEY AUTOINCREMENT,
		continent TEXT NOT NULL,
		country TEXT NOT NULL,
		city TEXT NOT NULL,
		month TEXT NOT NULL,
` + metricCols.String() + `		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(continent, country, city, month)
	);

	CREATE INDEX IF NOT EXISTS idx_urls_country ON urls(continent, country);
	CREATE INDEX IF NOT EXISTS idx_climate_city ON climate(continent, country, city);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTree upserts the flattened URL tree in one transaction.
func (s *Storage) SaveTree(ctx context.Context, tree *types.Tree) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO urls (continent, country, country_url, city, city_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(continent, country, city) DO UPDATE SET
			country_url = EXCLUDED.country_url,
			city_url = EXCLUDED.city_url
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare url upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range tree.Flatten() {
		if _, err := stmt.ExecContext(ctx, r.Continent, r.Country, r.CountryURL, r.City, r.CityURL); err != nil {
			return fmt.Errorf("failed to upsert url %s/%s: %w", r.Country, r.City, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit urls: %w", err)
	}
	return nil
}

// Load upserts the month rows of one city. A re-run replaces earlier values.
func (s *Storage) Load(ctx context.Context, target types.Target, records []types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, climateUpsert())
	if err != nil {
		return fmt.Errorf("failed to prepare climate upsert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(climateColumns))
	for _, rec := range records {
		for i := range args {
			var cell types.Cell
			if i < len(rec) {
				cell = rec[i]
			}
			args[i] = cell
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert climate row for %s: %w", target.City, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit climate rows: %w", err)
	}
	return nil
}

func climateUpsert() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(climateColumns)), ", ")
	updates := make([]string, 0, len(climateColumns)-4)
	for _, col := range climateColumns[4:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf(`
		INSERT INTO climate (%s)
		VALUES (%s)
		ON CONFLICT(continent, country, city, month) DO UPDATE SET
			%s`,
		strings.Join(climateColumns, ", "), placeholders, strings.Join(updates, ",\n\t\t\t"))
}

// cityRecords returns the stored rows of a city in calendar order.
func (s *Storage) cityRecords(ctx context.Context, continent, country, city string) ([]types.Record, error) {
	order := make([]string, len(types.Months))
	for i, m := range types.Months {
		order[i] = fmt.Sprintf("WHEN '%s' THEN %d", m, i)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM climate
		WHERE continent = ? AND country = ? AND city = ?
		ORDER BY CASE month %s END`,
		strings.Join(climateColumns, ", "), strings.Join(order, " "))

	rows, err := s.db.QueryContext(ctx, query, continent, country, city)
	if err != nil {
		return nil, fmt.Errorf("failed to query climate rows: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		rec := make(types.Record, len(climateColumns))
		dest := make([]any, len(rec))
		for i := range rec {
			dest[i] = &rec[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan climate row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountURLs returns the number of stored tree rows.
func (s *Storage) CountURLs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM urls").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count urls: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}
