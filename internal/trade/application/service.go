package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trademall/orderflow/internal/trade/domain"
)

var ErrEmptyOrder = errors.New("order has no items")

type OrderForm struct {
	PaymentType int
	Details     []domain.OrderLine
}

type Service struct {
	log     *slog.Logger
	repo    OrderRepository
	items   ItemClient
	carts   CartClient
	timeout time.Duration
}

// NewService wires the order orchestrator. timeout is the pay window
// after which the delayed cancellation check fires.
func NewService(log *slog.Logger, repo OrderRepository, items ItemClient, carts CartClient, timeout time.Duration) *Service {
	return &Service{log: log, repo: repo, items: items, carts: carts, timeout: timeout}
}

// CreateOrder runs the creation saga: snapshot prices, persist the
// order with its delayed timeout check, clear the cart (best effort),
// deduct stock. A failed deduction compensates by closing the order it
// just wrote before surfacing the error.
func (s *Service) CreateOrder(ctx context.Context, userID string, form OrderForm, headers map[string]string, traceparent string) (string, error) {
	if len(form.Details) == 0 {
		return "", ErrEmptyOrder
	}

	numByItem := make(map[string]int, len(form.Details))
	ids := make([]string, 0, len(form.Details))
	for _, line := range form.Details {
		if _, ok := numByItem[line.ItemID]; !ok {
			ids = append(ids, line.ItemID)
		}
		numByItem[line.ItemID] += line.Num
	}

	items, err := s.items.QueryByIDs(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("query items: %w", err)
	}
	if len(items) < len(ids) {
		return "", domain.ErrItemNotFound
	}

	orderID := uuid.NewString()
	details := make([]domain.OrderDetail, 0, len(items))
	for _, item := range items {
		details = append(details, domain.OrderDetail{
			OrderID: orderID,
			ItemID:  item.ID,
			Name:    item.Name,
			Spec:    item.Spec,
			Image:   item.Image,
			Price:   item.Price,
			Num:     numByItem[item.ID],
		})
	}
	order := domain.NewOrder(orderID, userID, form.PaymentType, details)

	payload, err := json.Marshal(domain.TimeoutCheck{OrderID: orderID})
	if err != nil {
		return "", err
	}
	availableAt := time.Now().UTC().Add(s.timeout)
	if err := s.repo.CreateWithTimeout(ctx, order, details, payload, availableAt, headers, traceparent); err != nil {
		return "", fmt.Errorf("persist order: %w", err)
	}

	// Cart cleanup is not consistency-critical; the saga proceeds.
	if err := s.carts.RemoveItems(ctx, userID, ids); err != nil {
		s.log.Warn("cart cleanup failed", "order_id", orderID, "err", err)
	}

	if err := s.items.DeductStock(ctx, lines(details)); err != nil {
		// Compensate: the order row is committed, close it through the
		// same guarded transition. Nothing was deducted, so no restore.
		if _, closeErr := s.repo.Close(ctx, orderID, time.Now().UTC()); closeErr != nil {
			s.log.Error("compensating close failed", "order_id", orderID, "err", closeErr)
		}
		if errors.Is(err, domain.ErrInsufficientStock) {
			return "", domain.ErrInsufficientStock
		}
		return "", fmt.Errorf("deduct stock: %w", err)
	}

	s.log.Info("order created", "order_id", orderID, "user_id", userID, "total_fee", order.TotalFee)
	return orderID, nil
}

// MarkOrderPaySuccess applies CREATED->PAID. Losing the race (order
// already paid or closed) is a successful no-op.
func (s *Service) MarkOrderPaySuccess(ctx context.Context, orderID string) error {
	updated, err := s.repo.MarkPaySuccess(ctx, orderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark pay success: %w", err)
	}
	if !updated {
		s.log.Info("order already paid or closed", "order_id", orderID)
	}
	return nil
}

// CancelOrder applies CREATED->CLOSED and restores stock for every
// detail. A lost race means no compensation; restore failures are
// logged, never propagated.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	updated, err := s.repo.Close(ctx, orderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("close order: %w", err)
	}
	if !updated {
		s.log.Info("order already paid or closed, skipping cancel", "order_id", orderID)
		return nil
	}

	details, err := s.repo.Details(ctx, orderID)
	if err != nil {
		s.log.Error("load details for restore failed", "order_id", orderID, "err", err)
		return nil
	}
	if err := s.items.RestoreStock(ctx, lines(details)); err != nil {
		s.log.Error("stock restore failed", "order_id", orderID, "err", err)
	}
	s.log.Info("order closed", "order_id", orderID)
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, []domain.OrderDetail, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	details, err := s.repo.Details(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, details, nil
}

func lines(details []domain.OrderDetail) []domain.OrderLine {
	out := make([]domain.OrderLine, 0, len(details))
	for _, d := range details {
		out = append(out, domain.OrderLine{ItemID: d.ItemID, Num: d.Num})
	}
	return out
}
