package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trademall/orderflow/internal/pay/domain"
)

type ApplyForm struct {
	BizOrderNo     string
	PayChannelCode string
	Amount         int64
}

type Service struct {
	log       *slog.Logger
	repo      PayOrderRepository
	account   AccountClient
	publisher SuccessPublisher
	payWindow time.Duration
}

// NewService wires the payment orchestrator. payWindow bounds how long
// a fresh pay order stays payable.
func NewService(log *slog.Logger, repo PayOrderRepository, account AccountClient, publisher SuccessPublisher, payWindow time.Duration) *Service {
	return &Service{log: log, repo: repo, account: account, publisher: publisher, payWindow: payWindow}
}

// ApplyPayOrder creates-or-replays the pay order for a business order:
// at most one non-closed pay order per bizOrderNo ever exists. A replay
// on the same channel returns the existing order untouched; a channel
// switch resets the open order in place, keeping id and payOrderNo.
func (s *Service) ApplyPayOrder(ctx context.Context, userID string, form ApplyForm) (string, error) {
	existing, err := s.repo.GetByBizOrderNo(ctx, form.BizOrderNo)
	if errors.Is(err, domain.ErrPayOrderNotFound) {
		fresh := s.buildPayOrder(userID, form)
		fresh.ID = uuid.NewString()
		fresh.PayOrderNo = uuid.NewString()
		insertErr := s.repo.Insert(ctx, fresh)
		if insertErr == nil {
			s.log.Info("pay order created", "pay_order_id", fresh.ID, "biz_order_no", form.BizOrderNo)
			return fresh.ID, nil
		}
		if !errors.Is(insertErr, domain.ErrDuplicateBizOrderNo) {
			return "", fmt.Errorf("insert pay order: %w", insertErr)
		}
		// Lost the first-apply race; fall through to the replay rules.
		existing, err = s.repo.GetByBizOrderNo(ctx, form.BizOrderNo)
	}
	if err != nil {
		return "", fmt.Errorf("query pay order: %w", err)
	}

	switch {
	case existing.Status == domain.StatusTradeSuccess:
		return "", domain.ErrAlreadyPaid
	case existing.Status == domain.StatusTradeClosed:
		return "", domain.ErrOrderClosed
	case existing.PayChannelCode != form.PayChannelCode:
		reset := s.buildPayOrder(userID, form)
		reset.ID = existing.ID
		reset.PayOrderNo = existing.PayOrderNo
		if err := s.repo.ResetChannel(ctx, reset); err != nil {
			return "", fmt.Errorf("reset pay order: %w", err)
		}
		s.log.Info("pay order channel switched", "pay_order_id", existing.ID, "channel", form.PayChannelCode)
		return existing.ID, nil
	default:
		// Same channel, still open: pure replay.
		return existing.ID, nil
	}
}

// TryPayOrderByBalance settles an open pay order from the buyer's
// balance. The money moves before the status flips; the predicate on
// the conditional update resolves concurrent settlements, and the
// success event is best effort once the transition committed.
func (s *Service) TryPayOrderByBalance(ctx context.Context, payOrderID, credential string) error {
	po, err := s.repo.Get(ctx, payOrderID)
	if err != nil {
		return err
	}
	if po.Status != domain.StatusWaitBuyerPay {
		return domain.ErrAlreadyPaidOrClosed
	}

	if err := s.account.DeductMoney(ctx, credential, po.Amount); err != nil {
		return err
	}

	updated, err := s.repo.MarkSuccess(ctx, payOrderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark pay order success: %w", err)
	}
	if !updated {
		return domain.ErrAlreadyPaidOrClosed
	}

	if err := s.publisher.PublishPaySuccess(ctx, po.BizOrderNo); err != nil {
		// The deduction and transition are committed; delivery is
		// reconciled downstream, never rolled back here.
		s.log.Error("pay success publish failed", "biz_order_no", po.BizOrderNo, "err", err)
	}
	s.log.Info("pay order settled", "pay_order_id", payOrderID, "biz_order_no", po.BizOrderNo)
	return nil
}

func (s *Service) GetPayOrder(ctx context.Context, payOrderID string) (domain.PayOrder, error) {
	return s.repo.Get(ctx, payOrderID)
}

func (s *Service) buildPayOrder(userID string, form ApplyForm) domain.PayOrder {
	now := time.Now().UTC()
	return domain.PayOrder{
		BizOrderNo:     form.BizOrderNo,
		PayChannelCode: form.PayChannelCode,
		BizUserID:      userID,
		Amount:         form.Amount,
		Status:         domain.StatusWaitBuyerPay,
		QRCodeURL:      "",
		PayOverTime:    now.Add(s.payWindow),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
