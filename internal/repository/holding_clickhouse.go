package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"

	"github.com/jmoiron/sqlx"
)

// ClickHouseHoldingStore keeps holdings in a ReplacingMergeTree keyed by
// (user_id, id). Every write appends a row with a higher version; deletes
// append a tombstone. Reads use FINAL to see the latest row only.
type ClickHouseHoldingStore struct {
	db    *sqlx.DB
	table string
	now   func() time.Time
}

func NewClickHouseHoldingStore(db *sqlx.DB, table string) *ClickHouseHoldingStore {
	if table == "" {
		table = "holdings"
	}
	return &ClickHouseHoldingStore{db: db, table: table, now: time.Now}
}

type holdingRow struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	Ticker        string          `db:"ticker"`
	Name          string          `db:"name"`
	Type          string          `db:"type"`
	PurchasePrice float64         `db:"purchase_price"`
	Quantity      float64         `db:"quantity"`
	PurchaseDate  time.Time       `db:"purchase_date"`
	SalePrice     sql.NullFloat64 `db:"sale_price"`
	SaleDate      sql.NullTime    `db:"sale_date"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

const holdingColumns = "id, user_id, ticker, name, type, purchase_price, quantity, purchase_date, sale_price, sale_date, created_at, updated_at"

// Schema returns the DDL for the holdings table.
func (s *ClickHouseHoldingStore) Schema() []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id             String,
	user_id        String,
	ticker         LowCardinality(String),
	name           String,
	type           LowCardinality(String),
	purchase_price Float64,
	quantity       Float64,
	purchase_date  Date,
	sale_price     Nullable(Float64),
	sale_date      Nullable(Date),
	created_at     DateTime64(3, 'UTC'),
	updated_at     DateTime64(3, 'UTC'),
	version        UInt64,
	is_deleted     UInt8
) ENGINE = ReplacingMergeTree(version, is_deleted)
ORDER BY (user_id, id)`, s.table)}
}

func (s *ClickHouseHoldingStore) Init(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseHoldingStore) List(ctx context.Context, userID string) ([]models.Holding, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE user_id = ? AND is_deleted = 0 ORDER BY purchase_date, id", holdingColumns, s.table)

	var rows []holdingRow
	if err := s.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("select holdings: %w", err)
	}
	out := make([]models.Holding, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *ClickHouseHoldingStore) Get(ctx context.Context, userID, id string) (*models.Holding, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE user_id = ? AND id = ? AND is_deleted = 0 LIMIT 1", holdingColumns, s.table)

	var row holdingRow
	if err := s.db.GetContext(ctx, &row, q, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrHoldingNotFound
		}
		return nil, fmt.Errorf("select holding: %w", err)
	}
	h := row.toModel()
	return &h, nil
}

func (s *ClickHouseHoldingStore) Save(ctx context.Context, h *models.Holding) error {
	return s.insert(ctx, fromModel(h), false)
}

// Delete appends a tombstone for an existing holding.
func (s *ClickHouseHoldingStore) Delete(ctx context.Context, userID, id string) error {
	h, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.insert(ctx, fromModel(h), true)
}

func (s *ClickHouseHoldingStore) insert(ctx context.Context, r holdingRow, deleted bool) error {
	q := fmt.Sprintf("INSERT INTO %s (%s, version, is_deleted) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, holdingColumns)
	var tomb uint8
	if deleted {
		tomb = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.UserID, r.Ticker, r.Name, r.Type,
		r.PurchasePrice, r.Quantity, r.PurchaseDate,
		r.SalePrice, r.SaleDate,
		r.CreatedAt, r.UpdatedAt,
		uint64(s.now().UnixNano()), tomb,
	)
	if err != nil {
		return fmt.Errorf("insert holding %s: %w", r.ID, err)
	}
	return nil
}

func (s *ClickHouseHoldingStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseHoldingStore) Close() error { return nil }

func (r *holdingRow) toModel() models.Holding {
	h := models.Holding{
		ID:            r.ID,
		UserID:        r.UserID,
		Ticker:        r.Ticker,
		Name:          r.Name,
		Type:          models.AssetClass(r.Type),
		PurchasePrice: r.PurchasePrice,
		Quantity:      r.Quantity,
		PurchaseDate:  r.PurchaseDate.UTC(),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.SalePrice.Valid {
		v := r.SalePrice.Float64
		h.SalePrice = &v
	}
	if r.SaleDate.Valid {
		v := r.SaleDate.Time.UTC()
		h.SaleDate = &v
	}
	return h
}

func fromModel(h *models.Holding) holdingRow {
	r := holdingRow{
		ID:            h.ID,
		UserID:        h.UserID,
		Ticker:        h.Ticker,
		Name:          h.Name,
		Type:          string(h.Type),
		PurchasePrice: h.PurchasePrice,
		Quantity:      h.Quantity,
		PurchaseDate:  h.PurchaseDate,
		CreatedAt:     h.CreatedAt,
		UpdatedAt:     h.UpdatedAt,
	}
	if h.SalePrice != nil {
		r.SalePrice = sql.NullFloat64{Float64: *h.SalePrice, Valid: true}
	}
	if h.SaleDate != nil {
		r.SaleDate = sql.NullTime{Time: *h.SaleDate, Valid: true}
	}
	return r
}

var _ domrepo.HoldingStore = (*ClickHouseHoldingStore)(nil)
