package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iurnickita/bogstatus/internal/auth"
	"github.com/iurnickita/bogstatus/internal/handler/config"
	"github.com/iurnickita/bogstatus/internal/logger"
	"github.com/iurnickita/bogstatus/internal/metrics"
	"github.com/iurnickita/bogstatus/internal/model"
	"github.com/iurnickita/bogstatus/internal/poller"
	"github.com/iurnickita/bogstatus/internal/service"
)

// Serve runs the HTTP server until ctx is done, then shuts it down.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, metrics *metrics.Metrics, zaplog *zap.Logger) error {
	h := newHandler(auth, service, metrics, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
		// websocket-соединения не закрываются через Shutdown, их гасит ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	metrics  *metrics.Metrics
	zaplog   *zap.Logger
	upgrader websocket.Upgrader
}

func newHandler(auth auth.Auth, service service.Service, metrics *metrics.Metrics, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		metrics: metrics,
		zaplog:  zaplog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// страницы оплаты открываются с домена фронтенда
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/payments/status", logger.RequestLogMdlw(h.GetStatus, h.zaplog))
	mux.HandleFunc("GET /api/payments/{orderId}/status", logger.RequestLogMdlw(h.GetStatus, h.zaplog))
	mux.HandleFunc("GET /api/payments/{orderId}/stream", logger.RequestLogMdlw(h.StreamStatus, h.zaplog))
	mux.HandleFunc("POST /api/payments/{orderId}/track", logger.RequestLogMdlw(h.PostTrack, h.zaplog))
	mux.HandleFunc("GET /api/payments/{orderId}", logger.RequestLogMdlw(h.GetResult, h.zaplog))
	if h.auth != nil {
		mux.HandleFunc("GET /api/admin/payments/tracking", logger.RequestLogMdlw(h.auth.Middleware(h.GetTracking), h.zaplog))
	}
	mux.Handle("GET /metrics", h.metrics.Handler())

	return mux
}

type StatusJSONResponse struct {
	OrderID        string              `json:"orderId"`
	IsLoading      bool                `json:"isLoading"`
	PaymentDetails *model.StatusRecord `json:"paymentDetails"`
	Outcome        string              `json:"outcome"`
	Attempts       int                 `json:"attempts"`
	Error          string              `json:"error,omitempty"`
}

func newStatusJSON(orderID string, state poller.State) StatusJSONResponse {
	resp := StatusJSONResponse{
		OrderID:        orderID,
		IsLoading:      state.Loading,
		PaymentDetails: state.Details,
		Outcome:        state.Outcome.String(),
		Attempts:       state.Attempts,
	}
	if state.Err != nil {
		resp.Error = state.Err.Error()
	}
	return resp
}

func orderIDFrom(r *http.Request) string {
	orderID := r.PathValue("orderId")
	if orderID == "" {
		orderID = r.URL.Query().Get("orderId")
	}
	return orderID
}

func (h *handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := orderIDFrom(r)

	state, err := h.service.Verify(r.Context(), orderID, nil)
	if err != nil {
		switch err {
		case service.ErrUnknownOrderKind:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if r.Context().Err() != nil {
		// клиент ушёл, отвечать некому
		return
	}

	code := http.StatusOK
	if errors.Is(state.Err, poller.ErrNoOrderID) {
		code = http.StatusBadRequest
	}
	h.writeJSON(w, code, newStatusJSON(orderID, state))
}

// StreamStatus pushes every poll state over a websocket. Closing the socket
// disposes the poll.
func (h *handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	orderID := orderIDFrom(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.zaplog.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// читаем только для обнаружения закрытия соединения
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var writeErr error
	_, err = h.service.Verify(ctx, orderID, func(state poller.State) {
		if writeErr != nil {
			return
		}
		if writeErr = conn.WriteJSON(newStatusJSON(orderID, state)); writeErr != nil {
			cancel()
		}
	})
	if err != nil {
		conn.WriteJSON(StatusJSONResponse{OrderID: orderID, Outcome: model.OutcomePending.String(), Error: err.Error()})
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (h *handler) PostTrack(w http.ResponseWriter, r *http.Request) {
	err := h.service.Track(orderIDFrom(r))
	if err != nil {
		switch err {
		case service.ErrInsufficientData, service.ErrUnknownOrderKind:
			http.Error(w, err.Error(), http.StatusBadRequest)
		case service.ErrDuplicateRequest:
			w.WriteHeader(http.StatusOK)
		case service.ErrClosed:
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type ResultJSONResponse struct {
	OrderID   string    `json:"orderId"`
	Kind      string    `json:"kind"`
	Outcome   string    `json:"outcome"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	CheckedAt time.Time `json:"checkedAt"`
}

func (h *handler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), orderIDFrom(r))
	if err != nil {
		switch err {
		case service.ErrNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		case service.ErrInsufficientData:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, ResultJSONResponse{
		OrderID:   result.OrderID,
		Kind:      string(result.Kind),
		Outcome:   result.Outcome.String(),
		Status:    result.Status,
		Message:   result.Message,
		Error:     result.Error,
		Attempts:  result.Attempts,
		CheckedAt: result.CheckedAt,
	})
}

type TrackingJSONResponse struct {
	Orders []string `json:"orders"`
}

func (h *handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, TrackingJSONResponse{Orders: h.service.Tracking()})
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}
