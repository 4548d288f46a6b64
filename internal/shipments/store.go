package shipments

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"
)

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Reader is what the read-only API routes depend on.
type Reader interface {
	Find(ctx context.Context, f Filter) ([]Shipment, bool, error)
	TotalValue(ctx context.Context, f Filter) (decimal.Decimal, error)
	Search(ctx context.Context, f Filter) (Page, error)
	SearchSemantic(ctx context.Context, f Filter, query pgvector.Vector) (Page, error)
}

// Writer loads shipments in bulk.
type Writer interface {
	InsertBatch(ctx context.Context, rows []Shipment) (int64, error)
}

// Store implements Reader and Writer on PostgreSQL.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// NewStore creates a Store on top of a pool or transaction.
func NewStore(db DBTX, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger.With("component", "shipment_store")}
}

// Find returns the rows matching f in date order. When more than
// MaxAggregateRows match, the oldest rows are dropped and truncated is true.
func (s *Store) Find(ctx context.Context, f Filter) (rows []Shipment, truncated bool, err error) {
	where, args := BuildWhere(f)
	args = append(args, MaxAggregateRows+1)
	sql := fmt.Sprintf("SELECT %s FROM shipments %s ORDER BY shipment_date DESC, id DESC LIMIT $%d", selectColumns, where, len(args))

	result, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query shipments: %w", err)
	}
	out, err := collect(result)
	if err != nil {
		return nil, false, err
	}
	if len(out) > MaxAggregateRows {
		s.logger.WarnContext(ctx, "Aggregation input truncated", "limit", MaxAggregateRows)
		out = out[:MaxAggregateRows]
		truncated = true
	}
	slices.Reverse(out)
	return out, truncated, nil
}

// TotalValue sums value_usd over every row matching f. Unlike Find it has
// no row cap.
func (s *Store) TotalValue(ctx context.Context, f Filter) (decimal.Decimal, error) {
	where, args := BuildWhere(f)
	var total pgtype.Numeric
	if err := s.db.QueryRow(ctx, "SELECT COALESCE(sum(value_usd), 0) FROM shipments "+where, args...).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to total shipment value: %w", err)
	}
	return fromNumeric(total), nil
}

// Search returns one page of rows, newest first.
func (s *Store) Search(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalize()
	where, args := BuildWhere(f)

	total, err := s.count(ctx, where, args)
	if err != nil {
		return Page{}, err
	}

	args = append(args, f.Limit, f.Offset)
	sql := fmt.Sprintf("SELECT %s FROM shipments %s ORDER BY shipment_date DESC, id DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)-1, len(args))
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return Page{}, fmt.Errorf("failed to search shipments: %w", err)
	}
	data, err := collect(rows)
	if err != nil {
		return Page{}, err
	}
	return Page{TotalCount: total, Data: data}, nil
}

// SearchSemantic returns one page of rows ordered by cosine distance to query.
// Rows without an embedding are excluded.
func (s *Store) SearchSemantic(ctx context.Context, f Filter, query pgvector.Vector) (Page, error) {
	f = f.Normalize()
	where, args := BuildWhere(f)
	if where == "" {
		where = "WHERE embedding IS NOT NULL"
	} else {
		where += " AND embedding IS NOT NULL"
	}

	total, err := s.count(ctx, where, args)
	if err != nil {
		return Page{}, err
	}

	args = append(args, query, f.Limit, f.Offset)
	n := len(args)
	sql := fmt.Sprintf("SELECT %s FROM shipments %s ORDER BY embedding <=> $%d LIMIT $%d OFFSET $%d",
		selectColumns, where, n-2, n-1, n)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return Page{}, fmt.Errorf("failed to run semantic search: %w", err)
	}
	data, err := collect(rows)
	if err != nil {
		return Page{}, err
	}
	return Page{TotalCount: total, Data: data}, nil
}

func (s *Store) count(ctx context.Context, where string, args []any) (int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM shipments "+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count shipments: %w", err)
	}
	return total, nil
}

// InsertBatch copies rows into a staging table and upserts them on the
// natural key. It returns the number of rows inserted or updated.
func (s *Store) InsertBatch(ctx context.Context, rows []Shipment) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE shipments_staging
		(LIKE shipments INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"shipments_staging"},
		[]string{"shipment_date", "hs_code", "product", "supplier", "buyer", "origin_country",
			"destination_country", "port", "quantity", "unit", "value_usd", "embedding"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			var embedding any
			if len(r.Embedding.Slice()) > 0 {
				embedding = r.Embedding
			}
			return []any{
				pgtype.Date{Time: r.ShipmentDate, Valid: true},
				r.HSCode,
				r.Product,
				r.Supplier,
				r.Buyer,
				r.OriginCountry,
				r.DestinationCountry,
				r.Port,
				toNumeric(r.Quantity),
				r.Unit,
				toNumeric(r.ValueUSD),
				embedding,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows to staging table: %w", err)
	}

	tag, err := tx.Exec(ctx, `INSERT INTO shipments
		(shipment_date, hs_code, product, supplier, buyer, origin_country,
		 destination_country, port, quantity, unit, value_usd, embedding)
		SELECT DISTINCT ON (shipment_date, hs_code, supplier, buyer, value_usd)
		       shipment_date, hs_code, product, supplier, buyer, origin_country,
		       destination_country, port, quantity, unit, value_usd, embedding
		FROM shipments_staging
		ORDER BY shipment_date, hs_code, supplier, buyer, value_usd
		ON CONFLICT (shipment_date, hs_code, supplier, buyer, value_usd) DO UPDATE SET
			product = EXCLUDED.product,
			origin_country = EXCLUDED.origin_country,
			destination_country = EXCLUDED.destination_country,
			port = EXCLUDED.port,
			quantity = EXCLUDED.quantity,
			unit = EXCLUDED.unit,
			embedding = COALESCE(EXCLUDED.embedding, shipments.embedding)`)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert shipments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collect(rows pgx.Rows) ([]Shipment, error) {
	defer rows.Close()
	var out []Shipment
	for rows.Next() {
		var (
			s        Shipment
			qty, val pgtype.Numeric
		)
		if err := rows.Scan(&s.ID, &s.ShipmentDate, &s.HSCode, &s.Product, &s.Supplier, &s.Buyer,
			&s.OriginCountry, &s.DestinationCountry, &s.Port, &qty, &s.Unit, &val); err != nil {
			return nil, fmt.Errorf("failed to scan shipment row: %w", err)
		}
		s.Quantity = fromNumeric(qty)
		s.ValueUSD = fromNumeric(val)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shipment rows: %w", err)
	}
	return out, nil
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(d.Coefficient()), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
