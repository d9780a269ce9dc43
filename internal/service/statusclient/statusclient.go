package statusclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/iurnickita/bogstatus/internal/model"
)

var (
	ErrNoOrderID = errors.New("no order ID")
	ErrVerify    = errors.New("error verifying payment")
)

type StatusClient interface {
	GetStatus(ctx context.Context, kind model.OrderKind, orderID string) (model.StatusRecord, error)
}

type statusClient struct {
	client *resty.Client
}

func NewStatusClient(baseURL string, timeout time.Duration, zaplog *zap.Logger) StatusClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetLogger(zaplog.Sugar())
	return statusClient{client: client}
}

func (client statusClient) GetStatus(ctx context.Context, kind model.OrderKind, orderID string) (model.StatusRecord, error) {
	if orderID == "" {
		return model.StatusRecord{}, ErrNoOrderID
	}
	if !kind.Valid() {
		return model.StatusRecord{}, model.ErrUnknownOrderKind
	}

	setresp, err := client.client.R().
		SetContext(ctx).
		Get(kind.Path(orderID))
	if err != nil {
		return model.StatusRecord{}, fmt.Errorf("%w: %w", ErrVerify, err)
	}

	// Тело разбираем при любом коде ответа: PENDING может прийти и с не-2xx
	var record model.StatusRecord
	err = json.Unmarshal(setresp.Body(), &record)
	if err != nil {
		return model.StatusRecord{}, fmt.Errorf("%w: status %d: %w", ErrVerify, setresp.StatusCode(), err)
	}
	return record, nil
}
