package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/bogstatus/internal/auth"
	"github.com/iurnickita/bogstatus/internal/metrics"
	"github.com/iurnickita/bogstatus/internal/model"
	"github.com/iurnickita/bogstatus/internal/poller"
	"github.com/iurnickita/bogstatus/internal/service"
	"github.com/iurnickita/bogstatus/internal/service/config"
)

// fakeService отдаёт заранее заданные состояния опроса.
type fakeService struct {
	states   []poller.State
	block    bool
	canceled atomic.Bool
	trackErr error
	results  map[string]model.PaymentResult
	tracking []string
}

func (s *fakeService) Verify(ctx context.Context, orderID string, onUpdate func(poller.State)) (poller.State, error) {
	if orderID == "" {
		state := poller.State{Err: poller.ErrNoOrderID}
		if onUpdate != nil {
			onUpdate(state)
		}
		return state, nil
	}
	if _, err := model.KindFromOrderID(orderID); err != nil {
		return poller.State{}, service.ErrUnknownOrderKind
	}
	var last poller.State
	for _, state := range s.states {
		last = state
		if onUpdate != nil {
			onUpdate(state)
		}
	}
	if s.block {
		<-ctx.Done()
		s.canceled.Store(true)
		last.Loading = false
		last.Err = ctx.Err()
	}
	return last, nil
}

func (s *fakeService) Track(orderID string) error {
	if orderID == "" {
		return service.ErrInsufficientData
	}
	return s.trackErr
}

func (s *fakeService) Tracking() []string { return s.tracking }

func (s *fakeService) Result(_ context.Context, orderID string) (model.PaymentResult, error) {
	result, ok := s.results[orderID]
	if !ok {
		return model.PaymentResult{}, service.ErrNotFound
	}
	return result, nil
}

func (s *fakeService) SetPolling(config.Poll) {}
func (s *fakeService) Close()                 {}

const testSecret = "handler-secret"

func newTestServer(t *testing.T, svc service.Service) *httptest.Server {
	h := newHandler(auth.NewAuth(testSecret), svc, metrics.New("test"), zap.NewNop())
	srv := httptest.NewServer(h.newRouter())
	t.Cleanup(srv.Close)
	return srv
}

func paidStates() []poller.State {
	pending := &model.StatusRecord{Status: "PENDING"}
	paid := &model.StatusRecord{Status: "PAID"}
	return []poller.State{
		{Loading: true},
		{Loading: true, Details: pending, Attempts: 1},
		{Loading: false, Details: paid, Outcome: model.OutcomePaid, Attempts: 2},
	}
}

func getStatus(t *testing.T, url string) (int, StatusJSONResponse) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body StatusJSONResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestGetStatus(t *testing.T) {
	srv := newTestServer(t, &fakeService{states: paidStates()})

	code, body := getStatus(t, srv.URL+"/api/payments/QP_abc123/status")
	require.Equal(t, http.StatusOK, code)
	require.False(t, body.IsLoading)
	require.Equal(t, "PAID", body.Outcome)
	require.Equal(t, "PAID", body.PaymentDetails.Status)
	require.Equal(t, 2, body.Attempts)
	require.Empty(t, body.Error)
}

func TestGetStatusQuery(t *testing.T) {
	srv := newTestServer(t, &fakeService{states: paidStates()})

	code, body := getStatus(t, srv.URL+"/api/payments/status?orderId=TOUR_ORDER_9")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "TOUR_ORDER_9", body.OrderID)

	code, body = getStatus(t, srv.URL+"/api/payments/status")
	require.Equal(t, http.StatusBadRequest, code)
	require.False(t, body.IsLoading)
	require.Equal(t, poller.ErrNoOrderID.Error(), body.Error)
}

func TestGetStatusUnknownKind(t *testing.T) {
	srv := newTestServer(t, &fakeService{states: paidStates()})

	resp, err := http.Get(srv.URL + "/api/payments/BOAT_1/status")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamStatus(t *testing.T) {
	srv := newTestServer(t, &fakeService{states: paidStates()})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/payments/QP_abc123/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []StatusJSONResponse
	for {
		var msg StatusJSONResponse
		if err := conn.ReadJSON(&msg); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		got = append(got, msg)
	}

	require.Len(t, got, 3)
	require.True(t, got[0].IsLoading)
	require.Equal(t, "PENDING", got[1].PaymentDetails.Status)
	require.False(t, got[2].IsLoading)
	require.Equal(t, "PAID", got[2].Outcome)
}

func TestStreamStatusCloseDisposesPoll(t *testing.T) {
	svc := &fakeService{states: paidStates()[:2], block: true}
	srv := newTestServer(t, svc)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/payments/TOUR_ORDER_1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var msg StatusJSONResponse
	require.NoError(t, conn.ReadJSON(&msg))
	require.True(t, msg.IsLoading)
	conn.Close()

	require.Eventually(t, svc.canceled.Load, time.Second, 5*time.Millisecond)
}

func TestPostTrack(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		err     error
		code    int
	}{
		{"accepted", "QP_1", nil, http.StatusAccepted},
		{"duplicate", "QP_1", service.ErrDuplicateRequest, http.StatusOK},
		{"unknown kind", "BOAT_1", service.ErrUnknownOrderKind, http.StatusBadRequest},
		{"closed", "QP_1", service.ErrClosed, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeService{trackErr: tt.err})

			resp, err := http.Post(srv.URL+"/api/payments/"+tt.orderID+"/track", "text/plain", nil)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestGetResult(t *testing.T) {
	checkedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	srv := newTestServer(t, &fakeService{results: map[string]model.PaymentResult{
		"INS_1": {
			OrderID:   "INS_1",
			Kind:      model.OrderKindInsurance,
			Outcome:   model.OutcomeFailed,
			Status:    "FAILED",
			Error:     "payment failed",
			Attempts:  3,
			CheckedAt: checkedAt,
		},
	}})

	resp, err := http.Get(srv.URL + "/api/payments/INS_1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ResultJSONResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "insurance", body.Kind)
	require.Equal(t, "FAILED", body.Outcome)
	require.Equal(t, 3, body.Attempts)
	require.True(t, checkedAt.Equal(body.CheckedAt))

	missing, err := http.Get(srv.URL + "/api/payments/INS_2")
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetTracking(t *testing.T) {
	srv := newTestServer(t, &fakeService{tracking: []string{"INS_2", "QP_1"}})

	resp, err := http.Get(srv.URL + "/api/admin/payments/tracking")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.BuildToken("admin", []byte(testSecret), jwt.RegisteredClaims{})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/admin/payments/tracking", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TrackingJSONResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, []string{"INS_2", "QP_1"}, body.Orders)
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
