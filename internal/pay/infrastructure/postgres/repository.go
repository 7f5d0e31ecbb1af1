package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trademall/orderflow/internal/pay/domain"
)

// DB is the slice of pgxpool.Pool the repository uses; pgxmock stands in
// for it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	log *slog.Logger
	db  DB
}

func NewRepository(log *slog.Logger, db DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pay_orders (
			id TEXT PRIMARY KEY,
			biz_order_no TEXT NOT NULL,
			pay_order_no TEXT NOT NULL,
			pay_channel_code TEXT NOT NULL,
			biz_user_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			status INT NOT NULL,
			qr_code_url TEXT NOT NULL DEFAULT '',
			pay_over_time TIMESTAMPTZ NOT NULL,
			pay_success_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_pay_orders_biz ON pay_orders(biz_order_no)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

const payOrderColumns = `id, biz_order_no, pay_order_no, pay_channel_code, biz_user_id, amount, status, qr_code_url, pay_over_time, pay_success_time, created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, p domain.PayOrder) error {
	_, err := r.db.Exec(ctx, `INSERT INTO pay_orders (`+payOrderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.BizOrderNo, p.PayOrderNo, p.PayChannelCode, p.BizUserID, p.Amount, p.Status, p.QRCodeURL, p.PayOverTime, p.PaySuccessTime, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateBizOrderNo
		}
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.PayOrder, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+payOrderColumns+` FROM pay_orders WHERE id=$1`, id))
}

func (r *Repository) GetByBizOrderNo(ctx context.Context, bizOrderNo string) (domain.PayOrder, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+payOrderColumns+` FROM pay_orders WHERE biz_order_no=$1`, bizOrderNo))
}

func (r *Repository) scanOne(row pgx.Row) (domain.PayOrder, error) {
	var p domain.PayOrder
	err := row.Scan(&p.ID, &p.BizOrderNo, &p.PayOrderNo, &p.PayChannelCode, &p.BizUserID, &p.Amount, &p.Status, &p.QRCodeURL, &p.PayOverTime, &p.PaySuccessTime, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PayOrder{}, domain.ErrPayOrderNotFound
		}
		return domain.PayOrder{}, err
	}
	return p, nil
}

// ResetChannel rewrites an open pay order for a channel switch; id and
// pay_order_no stay as they are.
func (r *Repository) ResetChannel(ctx context.Context, p domain.PayOrder) error {
	_, err := r.db.Exec(ctx, `UPDATE pay_orders SET pay_channel_code=$2, biz_user_id=$3, amount=$4, status=$5, qr_code_url='', pay_over_time=$6, updated_at=$7 WHERE id=$1`,
		p.ID, p.PayChannelCode, p.BizUserID, p.Amount, p.Status, p.PayOverTime, p.UpdatedAt)
	return err
}

// MarkSuccess is the guarded settlement transition; the status IN
// predicate is the arbiter between concurrent settlements.
func (r *Repository) MarkSuccess(ctx context.Context, id string, successAt time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `UPDATE pay_orders SET status=$2, pay_success_time=$3, updated_at=$3 WHERE id=$1 AND status IN ($4,$5)`,
		id, domain.StatusTradeSuccess, successAt, domain.StatusNotCommit, domain.StatusWaitBuyerPay)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
