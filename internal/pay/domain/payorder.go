package domain

import "time"

type Status int

const (
	StatusNotCommit    Status = 0
	StatusWaitBuyerPay Status = 1
	StatusTradeClosed  Status = 2
	StatusTradeSuccess Status = 3
)

// Terminal reports whether s is a sink state.
func (s Status) Terminal() bool {
	return s == StatusTradeSuccess || s == StatusTradeClosed
}

// PayOrder is the settlement-side record for one business order.
// BizOrderNo is the order's identity in the buyer-facing flow;
// PayOrderNo is this service's own settlement identity, generated
// independently and preserved across channel switches.
type PayOrder struct {
	ID             string
	BizOrderNo     string
	PayOrderNo     string
	PayChannelCode string
	BizUserID      string
	Amount         int64
	Status         Status
	QRCodeURL      string
	PayOverTime    time.Time
	PaySuccessTime *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
