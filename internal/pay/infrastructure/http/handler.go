package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/trademall/orderflow/internal/pay/application"
	"github.com/trademall/orderflow/internal/pay/domain"
	payclient "github.com/trademall/orderflow/internal/pay/infrastructure/client"
	"github.com/trademall/orderflow/pkg/metrics"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
	applied prometheus.Counter
	settled prometheus.Counter
}

func NewHandler(log *slog.Logger, service *application.Service, reg *metrics.Registry) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("pay-http"),
		applied: reg.Counter("pay_orders_applied_total", "pay orders created or replayed"),
		settled: reg.Counter("pay_orders_settled_total", "successful balance settlements"),
	}
}

type applyReq struct {
	BizOrderNo     string `json:"bizOrderNo"`
	PayChannelCode string `json:"payChannelCode"`
	Amount         int64  `json:"amount"`
}

type balanceReq struct {
	Pw string `json:"pw"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/pay-orders", h.applyPayOrder)
	r.Post("/pay-orders/{id}/balance", h.payByBalance)
	r.Get("/pay-orders/{id}", h.getPayOrder)
	return r
}

func (h *Handler) applyPayOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ApplyPayOrder")
	defer span.End()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	var req applyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.BizOrderNo == "" || req.Amount <= 0 {
		http.Error(w, "bizOrderNo and positive amount required", http.StatusBadRequest)
		return
	}

	id, err := h.service.ApplyPayOrder(ctx, userID, application.ApplyForm{
		BizOrderNo:     req.BizOrderNo,
		PayChannelCode: req.PayChannelCode,
		Amount:         req.Amount,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.applied.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"payOrderId": id})
}

func (h *Handler) payByBalance(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TryPayOrderByBalance")
	defer span.End()

	var req balanceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.TryPayOrderByBalance(ctx, id, req.Pw); err != nil {
		h.writeError(w, err)
		return
	}
	h.settled.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getPayOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayOrder")
	defer span.End()

	po, err := h.service.GetPayOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payOrderView(po))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPayOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrOrderClosed),
		errors.Is(err, domain.ErrAlreadyPaidOrClosed),
		errors.Is(err, domain.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidCredential):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, payclient.ErrCollaboratorUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.log.Error("pay request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type payOrderResp struct {
	ID             string     `json:"id"`
	BizOrderNo     string     `json:"bizOrderNo"`
	PayOrderNo     string     `json:"payOrderNo"`
	PayChannelCode string     `json:"payChannelCode"`
	Amount         int64      `json:"amount"`
	Status         int        `json:"status"`
	QRCodeURL      string     `json:"qrCodeUrl,omitempty"`
	PayOverTime    time.Time  `json:"payOverTime"`
	PaySuccessTime *time.Time `json:"paySuccessTime,omitempty"`
}

func payOrderView(p domain.PayOrder) payOrderResp {
	return payOrderResp{
		ID:             p.ID,
		BizOrderNo:     p.BizOrderNo,
		PayOrderNo:     p.PayOrderNo,
		PayChannelCode: p.PayChannelCode,
		Amount:         p.Amount,
		Status:         int(p.Status),
		QRCodeURL:      p.QRCodeURL,
		PayOverTime:    p.PayOverTime,
		PaySuccessTime: p.PaySuccessTime,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
