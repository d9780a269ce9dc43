package model

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Типы заказов

type OrderKind string

const (
	OrderKindTour         OrderKind = "tour"
	OrderKindTransfer     OrderKind = "transfer"
	OrderKindQuickPayment OrderKind = "quick-payment"
	OrderKindInsurance    OrderKind = "insurance"
)

// Префиксы идентификаторов заказов
const (
	OrderPrefixTour         = "TOUR_ORDER_"
	OrderPrefixTransfer     = "TRANSFER_ORDER_"
	OrderPrefixQuickPayment = "QP_"
	OrderPrefixInsurance    = "INS_"
)

var ErrUnknownOrderKind = errors.New("unknown order kind")

var kindPrefixes = []struct {
	prefix string
	kind   OrderKind
}{
	{OrderPrefixTour, OrderKindTour},
	{OrderPrefixTransfer, OrderKindTransfer},
	{OrderPrefixQuickPayment, OrderKindQuickPayment},
	{OrderPrefixInsurance, OrderKindInsurance},
}

// KindFromOrderID определяет тип заказа по префиксу идентификатора.
func KindFromOrderID(orderID string) (OrderKind, error) {
	for _, kp := range kindPrefixes {
		if strings.HasPrefix(orderID, kp.prefix) {
			return kp.kind, nil
		}
	}
	return "", ErrUnknownOrderKind
}

func (kind OrderKind) segment() string {
	switch kind {
	case OrderKindTour:
		return "tours"
	case OrderKindTransfer:
		return "transfers"
	case OrderKindQuickPayment:
		return "quick-payment"
	case OrderKindInsurance:
		return "insurance"
	default:
		return ""
	}
}

// Path returns the gateway status path for an order of this kind.
func (kind OrderKind) Path(orderID string) string {
	return "/api/" + kind.segment() + "/payments/bog/status/" + url.PathEscape(orderID)
}

func (kind OrderKind) Valid() bool {
	return kind.segment() != ""
}

// Нормализованное состояние оплаты

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePaid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "PAID"
	case OutcomeFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

// Terminal reports whether polling must stop on this outcome.
func (o Outcome) Terminal() bool {
	return o == OutcomePaid || o == OutcomeFailed
}

func ParseOutcome(s string) Outcome {
	switch s {
	case "PAID":
		return OutcomePaid
	case "FAILED":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

// Ответ шлюза о статусе оплаты (один снимок на запрос)

type StatusRecord struct {
	OrderID   string     `json:"orderId,omitempty"`
	Success   *bool      `json:"success"`
	Status    string     `json:"status"`
	Amount    *Amount    `json:"amount,omitempty"`
	Message   string     `json:"message,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	FailedAt  *time.Time `json:"failedAt,omitempty"`
}

type Amount struct {
	Requested   decimal.Decimal `json:"requested"`
	Transferred decimal.Decimal `json:"transferred"`
	Currency    string          `json:"currency"`
}

// Результат последней проверки

type PaymentResult struct {
	OrderID   string
	Kind      OrderKind
	Outcome   Outcome
	Status    string
	Message   string
	Error     string
	Attempts  int
	CheckedAt time.Time
}
