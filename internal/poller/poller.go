// Package poller drives bounded polling of a payment status source.
//
// A poll run performs one immediate fetch and then one fetch per interval
// until the classifier reports a terminal outcome, the attempt ceiling is
// reached or the context is cancelled. Fetches never overlap: the next tick
// is only taken after the previous fetch has returned.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/bogstatus/internal/classifier"
	"github.com/iurnickita/bogstatus/internal/model"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 15
)

var (
	ErrNoOrderID      = errors.New("no order ID")
	ErrTakingLonger   = errors.New("payment verification is taking longer than expected")
	ErrCouldNotVerify = errors.New("could not verify payment status, please contact support")
	ErrPaymentFailed  = errors.New("payment failed")
)

type FetchFunc func(ctx context.Context, orderID string) (model.StatusRecord, error)

type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// State is the poll state visible to the caller after each fetch.
type State struct {
	Loading  bool
	Details  *model.StatusRecord
	Outcome  model.Outcome
	Attempts int
	Err      error
}

type Poller struct {
	fetch    FetchFunc
	classify classifier.Func
	cfg      Config
	zaplog   *zap.Logger
}

type Option func(*Poller)

func WithLogger(zaplog *zap.Logger) Option {
	return func(p *Poller) {
		p.zaplog = zaplog
	}
}

func New(fetch FetchFunc, classify classifier.Func, cfg Config, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	p := &Poller{
		fetch:    fetch,
		classify: classify,
		cfg:      cfg,
		zaplog:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls orderID until a final state and returns it. onUpdate, if not nil,
// receives every intermediate state and the final one, but never anything
// after ctx is done; in that case Run returns with Err set to ctx.Err().
func (p *Poller) Run(ctx context.Context, orderID string, onUpdate func(State)) State {
	notify := func(state State) {
		if onUpdate != nil {
			onUpdate(state)
		}
	}

	if orderID == "" {
		state := State{Err: ErrNoOrderID}
		notify(state)
		return state
	}

	state := State{Loading: true}
	notify(state)

	// Первый запрос сразу, без ожидания интервала
	failed := p.attempt(ctx, orderID, &state)
	if done, final := p.evaluate(ctx, &state, failed); done {
		if final {
			notify(state)
		}
		return state
	}
	notify(state)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.dispose(ctx, state)
		case <-ticker.C:
			if ctx.Err() != nil {
				return p.dispose(ctx, state)
			}
			failed = p.attempt(ctx, orderID, &state)
			if done, final := p.evaluate(ctx, &state, failed); done {
				if final {
					notify(state)
				}
				return state
			}
			notify(state)
		}
	}
}

func (p *Poller) attempt(ctx context.Context, orderID string, state *State) bool {
	state.Attempts++
	record, err := p.fetch(ctx, orderID)
	if err != nil {
		state.Details = nil
		state.Outcome = model.OutcomePending
		state.Err = err
		if ctx.Err() == nil {
			p.zaplog.Warn("payment status fetch failed",
				zap.String("order", orderID),
				zap.Int("attempt", state.Attempts),
				zap.Error(err))
		}
		return true
	}

	state.Details = &record
	state.Outcome = p.classify(record)
	state.Err = nil
	p.zaplog.Debug("payment status fetched",
		zap.String("order", orderID),
		zap.Int("attempt", state.Attempts),
		zap.String("status", record.Status),
		zap.Stringer("outcome", state.Outcome))
	return false
}

// evaluate decides whether polling stops after the latest attempt. final is
// false when the stop is caused by disposal and the caller must stay silent.
func (p *Poller) evaluate(ctx context.Context, state *State, failed bool) (done bool, final bool) {
	if ctx.Err() != nil {
		*state = p.dispose(ctx, *state)
		return true, false
	}

	switch {
	case state.Outcome == model.OutcomePaid:
		state.Loading = false
		return true, true
	case state.Outcome == model.OutcomeFailed:
		state.Loading = false
		state.Err = ErrPaymentFailed
		if state.Details != nil && state.Details.Message != "" {
			state.Err = fmt.Errorf("%w: %s", ErrPaymentFailed, state.Details.Message)
		}
		return true, true
	case state.Attempts >= p.cfg.MaxAttempts:
		state.Loading = false
		if failed {
			state.Err = fmt.Errorf("%w: %w", ErrCouldNotVerify, state.Err)
		} else {
			state.Err = ErrTakingLonger
		}
		return true, true
	}
	return false, false
}

func (p *Poller) dispose(ctx context.Context, state State) State {
	state.Loading = false
	state.Err = ctx.Err()
	return state
}
