package warranty

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/zombor/warrantysafe/internal/record"
	"github.com/zombor/warrantysafe/internal/scanning"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresDB implements the DB interface on Postgres through database/sql
type PostgresDB struct {
	db *sql.DB
}

// OpenPostgres connects to databaseURL, checks connectivity and applies migrations
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresDB(db), nil
}

// NewPostgresDB wraps an open connection pool
func NewPostgresDB(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// Migrate applies the embedded goose migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const warrantyColumns = `id, user_id, product_name, brand, purchase_date, price_cents, category,
warranty_period_months, fallbacks, sources, filename, content_type, provenance, archive_path,
reminded_at, created_at, updated_at`

// SaveWarranty upserts a warranty
func (p *PostgresDB) SaveWarranty(ctx context.Context, w *Warranty) error {
	fallbacks, err := json.Marshal(nonNilFields(w.Record.Fallbacks))
	if err != nil {
		return fmt.Errorf("marshaling fallbacks: %w", err)
	}
	sources, err := json.Marshal(nonNilSources(w.Record.Sources))
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}
	var remindedAt sql.NullTime
	if w.RemindedAt != nil {
		remindedAt = sql.NullTime{Time: *w.RemindedAt, Valid: true}
	}

	_, err = p.db.ExecContext(ctx, `
INSERT INTO warranties (`+warrantyColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO UPDATE SET
    product_name = EXCLUDED.product_name,
    brand = EXCLUDED.brand,
    purchase_date = EXCLUDED.purchase_date,
    price_cents = EXCLUDED.price_cents,
    category = EXCLUDED.category,
    warranty_period_months = EXCLUDED.warranty_period_months,
    fallbacks = EXCLUDED.fallbacks,
    sources = EXCLUDED.sources,
    archive_path = EXCLUDED.archive_path,
    reminded_at = EXCLUDED.reminded_at,
    updated_at = EXCLUDED.updated_at`,
		w.ID,
		w.UserID,
		w.Record.ProductName,
		w.Record.Brand,
		w.Record.PurchaseDate.Time(),
		w.Record.Price.Cents(),
		w.Record.Category,
		w.Record.WarrantyPeriodMonths,
		string(fallbacks),
		string(sources),
		w.Filename,
		w.ContentType,
		string(w.Provenance),
		w.ArchivePath,
		remindedAt,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving warranty %s: %w", w.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWarranty(row rowScanner) (*Warranty, error) {
	var (
		w          Warranty
		purchase   time.Time
		price      int64
		provenance string
		fallbacks  []byte
		sources    []byte
		remindedAt sql.NullTime
	)
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Record.ProductName,
		&w.Record.Brand,
		&purchase,
		&price,
		&w.Record.Category,
		&w.Record.WarrantyPeriodMonths,
		&fallbacks,
		&sources,
		&w.Filename,
		&w.ContentType,
		&provenance,
		&w.ArchivePath,
		&remindedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Record.PurchaseDate = record.NewDate(purchase.Year(), purchase.Month(), purchase.Day())
	w.Record.Price = record.Money(price)
	w.Provenance = scanning.Provenance(provenance)
	if remindedAt.Valid {
		t := remindedAt.Time
		w.RemindedAt = &t
	}
	if len(fallbacks) > 0 {
		if err := json.Unmarshal(fallbacks, &w.Record.Fallbacks); err != nil {
			return nil, fmt.Errorf("decoding fallbacks: %w", err)
		}
		if len(w.Record.Fallbacks) == 0 {
			w.Record.Fallbacks = nil
		}
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &w.Record.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources: %w", err)
		}
	}
	return &w, nil
}

// GetWarranty retrieves a warranty by ID
func (p *PostgresDB) GetWarranty(ctx context.Context, id string) (*Warranty, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+warrantyColumns+` FROM warranties WHERE id = $1`, id)
	w, err := scanWarranty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("warranty %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting warranty %s: %w", id, err)
	}
	return w, nil
}

// ListWarranties returns a user's warranties newest first, or all warranties for an empty userID
func (p *PostgresDB) ListWarranties(ctx context.Context, userID string) ([]*Warranty, error) {
	query := `SELECT ` + warrantyColumns + ` FROM warranties`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing warranties: %w", err)
	}
	defer rows.Close()

	warranties := make([]*Warranty, 0)
	for rows.Next() {
		w, err := scanWarranty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning warranty: %w", err)
		}
		warranties = append(warranties, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing warranties: %w", err)
	}
	return warranties, nil
}

// MarkReminded sets reminded_at on an existing row
func (p *PostgresDB) MarkReminded(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE warranties SET reminded_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("marking warranty %s reminded: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking warranty %s reminded: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("warranty %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteWarranty removes a warranty
func (p *PostgresDB) DeleteWarranty(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM warranties WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting warranty %s: %w", id, err)
	}
	return nil
}

// GetAccount retrieves an account
func (p *PostgresDB) GetAccount(ctx context.Context, userID string) (*Account, error) {
	var a Account
	err := p.db.QueryRowContext(ctx, `
SELECT user_id, free_upload_used, credits, updated_at FROM accounts WHERE user_id = $1`, userID).
		Scan(&a.UserID, &a.FreeUploadUsed, &a.Credits, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", userID, err)
	}
	return &a, nil
}

// SaveAccount upserts an account
func (p *PostgresDB) SaveAccount(ctx context.Context, a *Account) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO accounts (user_id, free_upload_used, credits, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
    free_upload_used = EXCLUDED.free_upload_used,
    credits = EXCLUDED.credits,
    updated_at = EXCLUDED.updated_at`,
		a.UserID, a.FreeUploadUsed, a.Credits, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", a.UserID, err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func nonNilFields(f []record.Field) []record.Field {
	if f == nil {
		return []record.Field{}
	}
	return f
}

func nonNilSources(s map[record.Field]string) map[record.Field]string {
	if s == nil {
		return map[record.Field]string{}
	}
	return s
}
