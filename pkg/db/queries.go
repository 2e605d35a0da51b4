package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/order"
)

// OrderRow is the flat persisted view of one submitted leg.
type OrderRow struct {
	ID              string
	Descriptor      string
	Symbol          string
	Side            string
	Type            string
	TimeSpan        string
	Price           sql.NullFloat64
	ActivationPrice sql.NullFloat64
	Amount          sql.NullFloat64
	Status          string
	CreatedAt       time.Time
}

// FillRow is one applied fill event.
type FillRow struct {
	ID         string
	Descriptor string
	Balance    float64
	FilledAt   time.Time
}

// SaveOrder upserts one composed leg.
func (j *Journal) SaveOrder(ctx context.Context, o *order.Order) error {
	symbol := ""
	if ins := o.Instrument(); ins != nil {
		symbol = ins.Name
	}

	_, err := j.DB.ExecContext(ctx, `
		INSERT INTO orders (id, descriptor, symbol, side, type, time_span, price, activation_price, amount, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status
	`, o.ID, o.Descriptor, symbol, string(o.Side), string(o.Type), string(o.TimeSpan),
		nullable(o.Price), nullable(o.ActivationPrice), nullable(o.Amount), string(o.Operation.Status))
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// SaveFill records one fill event. It returns false when the event ID was
// already journaled, which means the fill was applied in a previous run and
// must not accrue again.
func (j *Journal) SaveFill(ctx context.Context, ev events.OrderEvent) (bool, error) {
	res, err := j.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO fills (id, descriptor, balance, filled_at)
		VALUES (?, ?, ?, ?)
	`, ev.ID, ev.Descriptor, ev.Balance, ev.Time)
	if err != nil {
		return false, fmt.Errorf("save fill: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save fill: %w", err)
	}
	return rows > 0, nil
}

// ListOrders returns the newest journaled legs, most recent first.
func (j *Journal) ListOrders(ctx context.Context, limit int) ([]OrderRow, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.DB.QueryContext(ctx, `
		SELECT id, COALESCE(descriptor, ''), symbol, side, type, time_span,
		       price, activation_price, amount, status, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var r OrderRow
		if err := rows.Scan(&r.ID, &r.Descriptor, &r.Symbol, &r.Side, &r.Type, &r.TimeSpan,
			&r.Price, &r.ActivationPrice, &r.Amount, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFills returns applied fills in fill order, oldest first, so realized
// performance can be replayed after a restart.
func (j *Journal) ListFills(ctx context.Context, limit int) ([]FillRow, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := j.DB.QueryContext(ctx, `
		SELECT id, COALESCE(descriptor, ''), balance, filled_at
		FROM fills
		ORDER BY filled_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list fills: %w", err)
	}
	defer rows.Close()

	var out []FillRow
	for rows.Next() {
		var r FillRow
		if err := rows.Scan(&r.ID, &r.Descriptor, &r.Balance, &r.FilledAt); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
