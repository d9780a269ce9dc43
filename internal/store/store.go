package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/bogstatus/internal/model"
	"github.com/iurnickita/bogstatus/internal/store/config"
)

// Store keeps the last verification result per order. The gateway stays the
// source of truth; this is what the callback pages read back.
type Store interface {
	ResultPut(ctx context.Context, result model.PaymentResult) error
	ResultGet(ctx context.Context, orderID string) (model.PaymentResult, error)
	Close() error
}

var ErrNoRows = errors.New("no rows")

func NewStore(cfg config.Config) (Store, error) {
	if cfg.DBDsn == "" {
		return newMemStore(), nil
	}

	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Таблица результатов проверки.
	// Одна строка на заказ, перезаписывается при каждой проверке
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS payment_result (" +
			" order_id VARCHAR (64) PRIMARY KEY," +
			" kind VARCHAR (20) NOT NULL," +
			" outcome VARCHAR (10) NOT NULL," +
			" status VARCHAR (20) NOT NULL," +
			" message TEXT NOT NULL," +
			" error TEXT NOT NULL," +
			" attempts INTEGER NOT NULL," +
			" checked_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

type store struct {
	database *sql.DB
}

func (store *store) ResultPut(ctx context.Context, result model.PaymentResult) error {
	//Запись результата
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO payment_result (order_id, kind, outcome, status, message, error, attempts, checked_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8)"+
			" ON CONFLICT (order_id) DO UPDATE SET"+
			"   kind = EXCLUDED.kind,"+
			"   outcome = EXCLUDED.outcome,"+
			"   status = EXCLUDED.status,"+
			"   message = EXCLUDED.message,"+
			"   error = EXCLUDED.error,"+
			"   attempts = EXCLUDED.attempts,"+
			"   checked_at = EXCLUDED.checked_at",
		result.OrderID,
		string(result.Kind),
		result.Outcome.String(),
		result.Status,
		result.Message,
		result.Error,
		result.Attempts,
		result.CheckedAt)
	return err
}

func (store *store) ResultGet(ctx context.Context, orderID string) (model.PaymentResult, error) {
	//Получение результата
	row := store.database.QueryRowContext(ctx,
		"SELECT order_id, kind, outcome, status, message, error, attempts, checked_at"+
			" FROM payment_result"+
			" WHERE order_id = $1",
		orderID)

	var result model.PaymentResult
	var kind, outcome string
	err := row.Scan(&result.OrderID,
		&kind,
		&outcome,
		&result.Status,
		&result.Message,
		&result.Error,
		&result.Attempts,
		&result.CheckedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PaymentResult{}, ErrNoRows
		}
		return model.PaymentResult{}, err
	}
	result.Kind = model.OrderKind(kind)
	result.Outcome = model.ParseOutcome(outcome)
	return result, nil
}

func (store *store) Close() error {
	return store.database.Close()
}

type memStore struct {
	mu      sync.RWMutex
	results map[string]model.PaymentResult
}

func newMemStore() *memStore {
	return &memStore{results: make(map[string]model.PaymentResult)}
}

func (store *memStore) ResultPut(_ context.Context, result model.PaymentResult) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.results[result.OrderID] = result
	return nil
}

func (store *memStore) ResultGet(_ context.Context, orderID string) (model.PaymentResult, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	result, ok := store.results[orderID]
	if !ok {
		return model.PaymentResult{}, ErrNoRows
	}
	return result, nil
}

func (store *memStore) Close() error {
	return nil
}
