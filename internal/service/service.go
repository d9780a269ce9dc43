package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iurnickita/bogstatus/internal/classifier"
	"github.com/iurnickita/bogstatus/internal/metrics"
	"github.com/iurnickita/bogstatus/internal/model"
	"github.com/iurnickita/bogstatus/internal/poller"
	"github.com/iurnickita/bogstatus/internal/service/config"
	"github.com/iurnickita/bogstatus/internal/service/statusclient"
	"github.com/iurnickita/bogstatus/internal/store"
)

type Service interface {
	Verify(ctx context.Context, orderID string, onUpdate func(poller.State)) (poller.State, error)
	Track(orderID string) error
	Tracking() []string
	Result(ctx context.Context, orderID string) (model.PaymentResult, error)
	SetPolling(poll config.Poll)
	Close()
}

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnknownOrderKind = model.ErrUnknownOrderKind
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrNotFound         = errors.New("not found")
	ErrClosed           = errors.New("service closed")
)

type service struct {
	store   store.Store
	client  statusclient.StatusClient
	metrics *metrics.Metrics
	zaplog  *zap.Logger

	mu       sync.Mutex
	poll     config.Poll
	tracking map[string]context.CancelFunc
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg config.Config, store store.Store, metrics *metrics.Metrics, zaplog *zap.Logger) (Service, error) {
	client := statusclient.NewStatusClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, zaplog)
	ctx, cancel := context.WithCancel(context.Background())

	service := service{
		store:    store,
		client:   client,
		metrics:  metrics,
		zaplog:   zaplog,
		poll:     cfg.Poll,
		tracking: make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
	}

	return &service, nil
}

func (service *service) Verify(ctx context.Context, orderID string, onUpdate func(poller.State)) (poller.State, error) {
	// Пустой идентификатор обрабатывает сам поллер: ошибка без запросов
	kind, err := model.KindFromOrderID(orderID)
	if err != nil && orderID != "" {
		return poller.State{}, ErrUnknownOrderKind
	}

	zaplog := service.zaplog.With(
		zap.String("poll", uuid.NewString()),
		zap.String("kind", string(kind)))

	fetch := func(ctx context.Context, orderID string) (model.StatusRecord, error) {
		start := time.Now()
		record, err := service.client.GetStatus(ctx, kind, orderID)
		if ctx.Err() == nil {
			service.metrics.ObserveFetch(string(kind), time.Since(start), err)
		}
		return record, err
	}

	service.mu.Lock()
	poll := service.poll
	service.mu.Unlock()

	p := poller.New(fetch, classifier.For(kind), poller.Config{
		Interval:    poll.Interval,
		MaxAttempts: poll.MaxAttempts,
	}, poller.WithLogger(zaplog))

	service.metrics.PollStarted()
	state := p.Run(ctx, orderID, onUpdate)
	service.metrics.PollFinished()

	label := outcomeLabel(state)
	if label == "" {
		return state, nil
	}
	service.metrics.ObserveOutcome(string(kind), label)
	zaplog.Info("payment verification finished",
		zap.String("order", orderID),
		zap.String("outcome", label),
		zap.Int("attempts", state.Attempts),
		zap.Error(state.Err))

	result := model.PaymentResult{
		OrderID:   orderID,
		Kind:      kind,
		Outcome:   state.Outcome,
		Attempts:  state.Attempts,
		CheckedAt: time.Now().UTC(),
	}
	if state.Details != nil {
		result.Status = state.Details.Status
		result.Message = state.Details.Message
	}
	if state.Err != nil {
		result.Error = state.Err.Error()
	}
	if err := service.store.ResultPut(ctx, result); err != nil {
		zaplog.Warn("payment result not saved", zap.String("order", orderID), zap.Error(err))
	}

	return state, nil
}

// outcomeLabel names a final state for metrics and the result store. Empty
// means the run did not reach the gateway's verdict and is not recorded.
func outcomeLabel(state poller.State) string {
	switch {
	case errors.Is(state.Err, poller.ErrNoOrderID),
		errors.Is(state.Err, context.Canceled),
		errors.Is(state.Err, context.DeadlineExceeded):
		return ""
	case errors.Is(state.Err, poller.ErrCouldNotVerify):
		return "ERROR"
	default:
		return state.Outcome.String()
	}
}

func (service *service) Track(orderID string) error {
	if orderID == "" {
		return ErrInsufficientData
	}
	if _, err := model.KindFromOrderID(orderID); err != nil {
		return ErrUnknownOrderKind
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	if service.closed {
		return ErrClosed
	}
	if _, ok := service.tracking[orderID]; ok {
		return ErrDuplicateRequest
	}

	ctx, cancel := context.WithCancel(service.ctx)
	service.tracking[orderID] = cancel
	service.wg.Add(1)

	go service.trackProcessing(ctx, cancel, orderID)

	return nil
}

func (service *service) trackProcessing(ctx context.Context, cancel context.CancelFunc, orderID string) {
	defer service.wg.Done()
	defer func() {
		service.mu.Lock()
		delete(service.tracking, orderID)
		service.mu.Unlock()
		cancel()
	}()

	if _, err := service.Verify(ctx, orderID, nil); err != nil {
		service.zaplog.Error("payment tracking failed", zap.String("order", orderID), zap.Error(err))
	}
}

func (service *service) Tracking() []string {
	service.mu.Lock()
	defer service.mu.Unlock()

	orders := make([]string, 0, len(service.tracking))
	for orderID := range service.tracking {
		orders = append(orders, orderID)
	}
	sort.Strings(orders)
	return orders
}

func (service *service) Result(ctx context.Context, orderID string) (model.PaymentResult, error) {
	if orderID == "" {
		return model.PaymentResult{}, ErrInsufficientData
	}

	result, err := service.store.ResultGet(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.PaymentResult{}, ErrNotFound
		}
		return model.PaymentResult{}, err
	}
	return result, nil
}

func (service *service) SetPolling(poll config.Poll) {
	service.mu.Lock()
	defer service.mu.Unlock()
	service.poll = poll
	service.zaplog.Info("polling settings updated",
		zap.Duration("interval", poll.Interval),
		zap.Int("maxAttempts", poll.MaxAttempts))
}

// Close stops every tracked verification and waits for them to return.
func (service *service) Close() {
	service.mu.Lock()
	service.closed = true
	service.mu.Unlock()

	service.cancel()
	service.wg.Wait()
}
