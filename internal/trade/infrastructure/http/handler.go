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
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/trademall/orderflow/internal/trade/application"
	"github.com/trademall/orderflow/internal/trade/domain"
	tradeclient "github.com/trademall/orderflow/internal/trade/infrastructure/client"
	"github.com/trademall/orderflow/pkg/metrics"
)

type Handler struct {
	log       *slog.Logger
	service   *application.Service
	tracer    trace.Tracer
	created   prometheus.Counter
	cancelled prometheus.Counter
}

func NewHandler(log *slog.Logger, service *application.Service, reg *metrics.Registry) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		tracer:    otel.Tracer("trade-http"),
		created:   reg.Counter("orders_created_total", "orders accepted by the creation saga"),
		cancelled: reg.Counter("orders_cancelled_total", "orders cancelled on request"),
	}
}

type createOrderReq struct {
	PaymentType int                `json:"paymentType"`
	Details     []domain.OrderLine `json:"details"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/cancel", h.cancelOrder)
	r.Put("/orders/{id}/pay-success", h.markPaySuccess)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	id, err := h.service.CreateOrder(ctx, userID, application.OrderForm{
		PaymentType: req.PaymentType,
		Details:     req.Details,
	}, map[string]string{"user_id": userID}, carrier["traceparent"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.created.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"orderId": id})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	order, details, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(order, details))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	if err := h.service.CancelOrder(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.cancelled.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markPaySuccess(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkOrderPaySuccess")
	defer span.End()

	if err := h.service.MarkOrderPaySuccess(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrEmptyOrder), errors.Is(err, domain.ErrItemNotFound):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientStock):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, tradeclient.ErrCollaboratorUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.log.Error("trade request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type orderDetailResp struct {
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
	Spec   string `json:"spec,omitempty"`
	Image  string `json:"image,omitempty"`
	Price  int64  `json:"price"`
	Num    int    `json:"num"`
}

type orderResp struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	TotalFee    int64             `json:"totalFee"`
	PaymentType int               `json:"paymentType"`
	Status      int               `json:"status"`
	PayTime     *time.Time        `json:"payTime,omitempty"`
	CloseTime   *time.Time        `json:"closeTime,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	Details     []orderDetailResp `json:"details"`
}

func orderView(o domain.Order, details []domain.OrderDetail) orderResp {
	ds := make([]orderDetailResp, 0, len(details))
	for _, d := range details {
		ds = append(ds, orderDetailResp{
			ItemID: d.ItemID,
			Name:   d.Name,
			Spec:   d.Spec,
			Image:  d.Image,
			Price:  d.Price,
			Num:    d.Num,
		})
	}
	return orderResp{
		ID:          o.ID,
		UserID:      o.UserID,
		TotalFee:    o.TotalFee,
		PaymentType: o.PaymentType,
		Status:      int(o.Status),
		PayTime:     o.PayTime,
		CloseTime:   o.CloseTime,
		CreatedAt:   o.CreatedAt,
		Details:     ds,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
