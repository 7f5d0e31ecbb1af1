package application

import (
	"context"
	"time"

	"github.com/trademall/orderflow/internal/trade/domain"
)

type OrderRepository interface {
	// CreateWithTimeout writes the order, its details, and the delayed
	// timeout event in a single transaction.
	CreateWithTimeout(ctx context.Context, o domain.Order, details []domain.OrderDetail, payload []byte, availableAt time.Time, headers map[string]string, traceparent string) error
	Get(ctx context.Context, id string) (domain.Order, error)
	Details(ctx context.Context, orderID string) ([]domain.OrderDetail, error)
	// MarkPaySuccess applies CREATED->PAID guarded by the current status;
	// false means the order already left CREATED.
	MarkPaySuccess(ctx context.Context, id string, paidAt time.Time) (bool, error)
	// Close applies CREATED->CLOSED under the same guard.
	Close(ctx context.Context, id string, closedAt time.Time) (bool, error)
}

type ItemClient interface {
	QueryByIDs(ctx context.Context, ids []string) ([]domain.Item, error)
	DeductStock(ctx context.Context, lines []domain.OrderLine) error
	RestoreStock(ctx context.Context, lines []domain.OrderLine) error
}

type CartClient interface {
	RemoveItems(ctx context.Context, userID string, itemIDs []string) error
}
