package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/trademall/orderflow/internal/pay/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeRepo struct {
	byBiz map[string]domain.PayOrder
	byID  map[string]domain.PayOrder

	insertErr    error
	missFirstGet bool
	inserted     []domain.PayOrder
	resets       []domain.PayOrder
	markUpdated  bool
	markCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byBiz: map[string]domain.PayOrder{}, byID: map[string]domain.PayOrder{}}
}

func (r *fakeRepo) add(p domain.PayOrder) {
	r.byBiz[p.BizOrderNo] = p
	r.byID[p.ID] = p
}

func (r *fakeRepo) Insert(_ context.Context, p domain.PayOrder) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	if _, ok := r.byBiz[p.BizOrderNo]; ok {
		return domain.ErrDuplicateBizOrderNo
	}
	r.inserted = append(r.inserted, p)
	r.add(p)
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (domain.PayOrder, error) {
	p, ok := r.byID[id]
	if !ok {
		return domain.PayOrder{}, domain.ErrPayOrderNotFound
	}
	return p, nil
}

func (r *fakeRepo) GetByBizOrderNo(_ context.Context, biz string) (domain.PayOrder, error) {
	if r.missFirstGet {
		r.missFirstGet = false
		return domain.PayOrder{}, domain.ErrPayOrderNotFound
	}
	p, ok := r.byBiz[biz]
	if !ok {
		return domain.PayOrder{}, domain.ErrPayOrderNotFound
	}
	return p, nil
}

func (r *fakeRepo) ResetChannel(_ context.Context, p domain.PayOrder) error {
	r.resets = append(r.resets, p)
	r.add(p)
	return nil
}

func (r *fakeRepo) MarkSuccess(_ context.Context, id string, _ time.Time) (bool, error) {
	r.markCalls++
	if r.markUpdated {
		p := r.byID[id]
		p.Status = domain.StatusTradeSuccess
		r.add(p)
	}
	return r.markUpdated, nil
}

type fakeAccount struct {
	err     error
	deducts []int64
}

func (f *fakeAccount) DeductMoney(_ context.Context, _ string, amount int64) error {
	if f.err != nil {
		return f.err
	}
	f.deducts = append(f.deducts, amount)
	return nil
}

type fakePublisher struct {
	err       error
	published []string
}

func (f *fakePublisher) PublishPaySuccess(_ context.Context, bizOrderNo string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, bizOrderNo)
	return nil
}

func newService(repo *fakeRepo, account *fakeAccount, pub *fakePublisher) *Service {
	return NewService(testLogger(), repo, account, pub, 120*time.Minute)
}

func applyForm() ApplyForm {
	return ApplyForm{BizOrderNo: "7", PayChannelCode: "balance", Amount: 4000}
}

func TestApplyPayOrderCreatesFresh(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeAccount{}, &fakePublisher{})

	before := time.Now().UTC()
	id, err := svc.ApplyPayOrder(context.Background(), "u1", applyForm())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d rows", len(repo.inserted))
	}
	p := repo.inserted[0]
	if p.ID != id || p.PayOrderNo == "" || p.PayOrderNo == p.ID {
		t.Fatalf("ids not generated independently: %+v", p)
	}
	if p.Status != domain.StatusWaitBuyerPay || p.BizUserID != "u1" || p.Amount != 4000 {
		t.Fatalf("unexpected pay order %+v", p)
	}
	wantOver := before.Add(120 * time.Minute)
	if p.PayOverTime.Before(wantOver.Add(-time.Minute)) || p.PayOverTime.After(wantOver.Add(time.Minute)) {
		t.Fatalf("pay over time %v, want ~%v", p.PayOverTime, wantOver)
	}
}

func TestApplyPayOrderReplaySameChannel(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeAccount{}, &fakePublisher{})

	first, err := svc.ApplyPayOrder(context.Background(), "u1", applyForm())
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.ApplyPayOrder(context.Background(), "u1", applyForm())
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("replay returned %s, want %s", second, first)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("replay must not create a second row, got %d", len(repo.inserted))
	}
	if len(repo.resets) != 0 {
		t.Fatal("same-channel replay must not reset")
	}
}

func TestApplyPayOrderChannelSwitchResetsInPlace(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeAccount{}, &fakePublisher{})

	id, err := svc.ApplyPayOrder(context.Background(), "u1", applyForm())
	if err != nil {
		t.Fatal(err)
	}
	originalPayOrderNo := repo.inserted[0].PayOrderNo

	form := applyForm()
	form.PayChannelCode = "wechat"
	switched, err := svc.ApplyPayOrder(context.Background(), "u1", form)
	if err != nil {
		t.Fatal(err)
	}
	if switched != id {
		t.Fatalf("channel switch changed id: %s -> %s", id, switched)
	}
	if len(repo.resets) != 1 {
		t.Fatalf("resets = %d, want 1", len(repo.resets))
	}
	reset := repo.resets[0]
	if reset.PayOrderNo != originalPayOrderNo {
		t.Fatal("payOrderNo must survive the channel switch")
	}
	if reset.QRCodeURL != "" {
		t.Fatal("QR code must be cleared")
	}
	if reset.PayChannelCode != "wechat" {
		t.Fatalf("channel = %s", reset.PayChannelCode)
	}
}

func TestApplyPayOrderTerminalStates(t *testing.T) {
	repo := newFakeRepo()
	repo.add(domain.PayOrder{ID: "p1", BizOrderNo: "7", Status: domain.StatusTradeSuccess})
	svc := newService(repo, &fakeAccount{}, &fakePublisher{})

	if _, err := svc.ApplyPayOrder(context.Background(), "u1", applyForm()); !errors.Is(err, domain.ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}

	repo.add(domain.PayOrder{ID: "p1", BizOrderNo: "7", Status: domain.StatusTradeClosed})
	if _, err := svc.ApplyPayOrder(context.Background(), "u1", applyForm()); !errors.Is(err, domain.ErrOrderClosed) {
		t.Fatalf("err = %v, want ErrOrderClosed", err)
	}
}

func TestApplyPayOrderInsertRaceFallsBackToReplay(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeAccount{}, &fakePublisher{})

	// Simulate the race: the first read misses, the insert collides
	// with the winner's row, the second read sees it.
	winner := domain.PayOrder{ID: "winner", BizOrderNo: "7", PayChannelCode: "balance", Status: domain.StatusWaitBuyerPay}
	repo.add(winner)
	repo.missFirstGet = true
	repo.insertErr = domain.ErrDuplicateBizOrderNo

	id, err := svc.ApplyPayOrder(context.Background(), "u1", applyForm())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if id != "winner" {
		t.Fatalf("id = %s, want winner's", id)
	}
}

func TestTryPayOrderByBalanceSettles(t *testing.T) {
	repo := newFakeRepo()
	repo.add(domain.PayOrder{ID: "p1", BizOrderNo: "7", Amount: 4000, Status: domain.StatusWaitBuyerPay})
	repo.markUpdated = true
	account := &fakeAccount{}
	pub := &fakePublisher{}
	svc := newService(repo, account, pub)

	if err := svc.TryPayOrderByBalance(context.Background(), "p1", "123456"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(account.deducts) != 1 || account.deducts[0] != 4000 {
		t.Fatalf("deducts = %v", account.deducts)
	}
	if len(pub.published) != 1 || pub.published[0] != "7" {
		t.Fatalf("published = %v", pub.published)
	}
	if repo.byID["p1"].Status != domain.StatusTradeSuccess {
		t.Fatal("status must be TRADE_SUCCESS")
	}
}

func TestTryPayOrderByBalanceWrongState(t *testing.T) {
	repo := newFakeRepo()
	repo.add(domain.PayOrder{ID: "p1", Status: domain.StatusTradeSuccess})
	account := &fakeAccount{}
	svc := newService(repo, account, &fakePublisher{})

	err := svc.TryPayOrderByBalance(context.Background(), "p1", "123456")
	if !errors.Is(err, domain.ErrAlreadyPaidOrClosed) {
		t.Fatalf("err = %v, want ErrAlreadyPaidOrClosed", err)
	}
	if len(account.deducts) != 0 {
		t.Fatal("no money may move for a terminal pay order")
	}
}

func TestTryPayOrderByBalanceBadCredential(t *testing.T) {
	repo := newFakeRepo()
	repo.add(domain.PayOrder{ID: "p1", BizOrderNo: "7", Status: domain.StatusWaitBuyerPay})
	pub := &fakePublisher{}
	svc := newService(repo, &fakeAccount{err: domain.ErrInvalidCredential}, pub)

	err := svc.TryPayOrderByBalance(context.Background(), "p1", "wrong")
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if repo.markCalls != 0 {
		t.Fatal("status must be untouched on deduction failure")
	}
	if len(pub.published) != 0 {
		t.Fatal("no event may be published on deduction failure")
	}
}

func TestTryPayOrderByBalanceLosesSettlementRace(t *testing.T) {
	repo := newFakeRepo()
	repo.add(domain.PayOrder{ID: "p1", BizOrderNo: "7", Status: domain.StatusWaitBuyerPay})
	repo.markUpdated = false
	pub := &fakePublisher{}
	svc := newService(repo, &fakeAccount{}, pub)

	err := svc.TryPayOrderByBalance(context.Background(), "p1", "123456")
	if !errors.Is(err, domain.ErrAlreadyPaidOrClosed) {
		t.Fatalf("err = %v, want ErrAlreadyPaidOrClosed", err)
	}
	if len(pub.published) != 0 {
		t.Fatal("loser must not publish")
	}
}

func TestTryPayOrderByBalancePublishFailureSwallowed(t *testing.T) {
	repo := newFakeRepo()
	repo.add(domain.PayOrder{ID: "p1", BizOrderNo: "7", Status: domain.StatusWaitBuyerPay})
	repo.markUpdated = true
	svc := newService(repo, &fakeAccount{}, &fakePublisher{err: errors.New("broker down")})

	if err := svc.TryPayOrderByBalance(context.Background(), "p1", "123456"); err != nil {
		t.Fatalf("publish failure must not fail settlement, got %v", err)
	}
}
