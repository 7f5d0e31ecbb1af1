package domain

import "time"

type Status int

const (
	StatusCreated Status = 1
	StatusPaid    Status = 2
	StatusClosed  Status = 5
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusClosed
}

type Order struct {
	ID          string
	UserID      string
	TotalFee    int64
	PaymentType int
	Status      Status
	PayTime     *time.Time
	CloseTime   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderDetail is the immutable purchase-time snapshot of one line.
type OrderDetail struct {
	OrderID string
	ItemID  string
	Name    string
	Spec    string
	Image   string
	Price   int64
	Num     int
}

// Item is the collaborator's view of a sellable product.
type Item struct {
	ID    string
	Name  string
	Spec  string
	Image string
	Price int64
	Stock int
}

// OrderLine is the (item, quantity) pair used for stock deduct/restore.
type OrderLine struct {
	ItemID string `json:"itemId"`
	Num    int    `json:"num"`
}

// NewOrder builds a CREATED order whose total is the exact integer sum
// of price*num over details.
func NewOrder(id, userID string, paymentType int, details []OrderDetail) Order {
	var total int64
	for _, d := range details {
		total += d.Price * int64(d.Num)
	}
	now := time.Now().UTC()
	return Order{
		ID:          id,
		UserID:      userID,
		TotalFee:    total,
		PaymentType: paymentType,
		Status:      StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
