package application

import (
	"context"
	"time"

	"github.com/trademall/orderflow/internal/pay/domain"
)

type PayOrderRepository interface {
	// Insert fails with domain.ErrDuplicateBizOrderNo when another pay
	// order already holds the business order number.
	Insert(ctx context.Context, p domain.PayOrder) error
	Get(ctx context.Context, id string) (domain.PayOrder, error)
	GetByBizOrderNo(ctx context.Context, bizOrderNo string) (domain.PayOrder, error)
	// ResetChannel rewrites an open pay order in place for a channel
	// switch, keeping id and payOrderNo.
	ResetChannel(ctx context.Context, p domain.PayOrder) error
	// MarkSuccess applies {NOT_COMMIT,WAIT_BUYER_PAY}->TRADE_SUCCESS;
	// false means a concurrent settlement already won.
	MarkSuccess(ctx context.Context, id string, successAt time.Time) (bool, error)
}

type AccountClient interface {
	DeductMoney(ctx context.Context, credential string, amount int64) error
}

type SuccessPublisher interface {
	PublishPaySuccess(ctx context.Context, bizOrderNo string) error
}
