package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trademall/orderflow/internal/trade/domain"
)

// DB is the slice of pgxpool.Pool the repository uses; pgxmock stands in
// for it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository struct {
	log *slog.Logger
	db  DB
}

func NewRepository(log *slog.Logger, db DB) *Repository {
	return &Repository{log: log, db: db}
}

// InitSchema creates the orders, order_details and outbox tables.
func (r *Repository) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			total_fee BIGINT NOT NULL,
			payment_type INT NOT NULL,
			status INT NOT NULL,
			pay_time TIMESTAMPTZ,
			close_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_details (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			item_id TEXT NOT NULL,
			name TEXT NOT NULL,
			spec TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL,
			num INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id BIGSERIAL PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload JSONB NOT NULL,
			headers JSONB,
			traceparent TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			available_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			relay_id TEXT,
			lease_until TIMESTAMPTZ,
			retry_count INT NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_details_order ON order_details(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(status, available_at)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) CreateWithTimeout(ctx context.Context, o domain.Order, details []domain.OrderDetail, payload []byte, availableAt time.Time, headers map[string]string, traceparent string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, user_id, total_fee, payment_type, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.ID, o.UserID, o.TotalFee, o.PaymentType, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for _, d := range details {
		_, err = tx.Exec(ctx, `INSERT INTO order_details (order_id, item_id, name, spec, image, price, num)
				VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, d.ItemID, d.Name, d.Spec, d.Image, d.Price, d.Num)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status, available_at)
			VALUES ($1,$2,$3,$4,$5,$6,'pending',$7)`,
		"order", o.ID, domain.EventTimeoutCheck, payload, headers, traceparent, availableAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.db.QueryRow(ctx, `SELECT id, user_id, total_fee, payment_type, status, pay_time, close_time, created_at, updated_at
			FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserID, &o.TotalFee, &o.PaymentType, &o.Status, &o.PayTime, &o.CloseTime, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) Details(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	rows, err := r.db.Query(ctx, `SELECT order_id, item_id, name, spec, image, price, num
			FROM order_details WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []domain.OrderDetail
	for rows.Next() {
		var d domain.OrderDetail
		if err := rows.Scan(&d.OrderID, &d.ItemID, &d.Name, &d.Spec, &d.Image, &d.Price, &d.Num); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// MarkPaySuccess is the guarded CREATED->PAID transition. The status
// predicate is the only concurrency control: zero affected rows means
// another writer already moved the order.
func (r *Repository) MarkPaySuccess(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `UPDATE orders SET status=$2, pay_time=$3, updated_at=$3 WHERE id=$1 AND status=$4`,
		id, domain.StatusPaid, paidAt, domain.StatusCreated)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Close is the guarded CREATED->CLOSED transition.
func (r *Repository) Close(ctx context.Context, id string, closedAt time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `UPDATE orders SET status=$2, close_time=$3, updated_at=$3 WHERE id=$1 AND status=$4`,
		id, domain.StatusClosed, closedAt, domain.StatusCreated)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
