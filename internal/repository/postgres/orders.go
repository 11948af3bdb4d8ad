package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"good-food/internal/domain"
)

func (t *pgTx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, shop_id, status, total, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, o.ID, o.UserID, o.ShopID, string(o.Status), int64(o.Total), o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return writeOrderChildren(ctx, t.tx, o)
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := loadOrder(ctx, t.tx, id, true)
	if err != nil {
		return domain.Order{}, translate(err)
	}
	return o, nil
}

func (t *pgTx) SaveOrder(ctx context.Context, o domain.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET user_id=$2, status=$3, total=$4, version=$5, updated_at=$6 WHERE id=$1
	`, o.ID, o.UserID, string(o.Status), int64(o.Total), o.Version, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: domain.EntityOrder, ID: o.ID}
	}
	for _, table := range []string{"order_item_options", "order_items", "order_reservations"} {
		if _, err := t.tx.Exec(ctx, "DELETE FROM "+table+" WHERE order_id=$1", o.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return writeOrderChildren(ctx, t.tx, o)
}

func (t *pgTx) DeleteOrder(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete order: %w", translate(err))
	}
	return nil
}

func writeOrderChildren(ctx context.Context, q querier, o domain.Order) error {
	for pos, it := range o.Items {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items (order_id, position, item_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, o.ID, pos, it.ItemID, it.Quantity, int64(it.UnitPrice)); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		for optPos, opt := range it.SelectedOptions {
			if _, err := q.Exec(ctx, `
				INSERT INTO order_item_options (order_id, position, option_position, option_id, name, additional_price)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, o.ID, pos, optPos, opt.OptionID, opt.Name, int64(opt.AdditionalPrice)); err != nil {
				return fmt.Errorf("insert order item option: %w", err)
			}
		}
	}
	for _, ingID := range o.Reservation.SortedIDs() {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_reservations (order_id, ingredient_id, quantity) VALUES ($1,$2,$3)
		`, o.ID, ingID, o.Reservation[ingID]); err != nil {
			return fmt.Errorf("insert order reservation: %w", err)
		}
	}
	return nil
}

func loadOrder(ctx context.Context, q querier, id string, forUpdate bool) (domain.Order, error) {
	query := `
		SELECT id, user_id, shop_id, status, total, version, created_at, updated_at
		FROM orders WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		o      domain.Order
		status string
		total  int64
	)
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.UserID, &o.ShopID, &status, &total, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, &domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.Total = domain.Money(total)

	if o.Items, err = loadOrderItems(ctx, q, id); err != nil {
		return domain.Order{}, err
	}
	if o.Reservation, err = loadReservation(ctx, q, id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func loadOrderItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT item_id, quantity, unit_price FROM order_items
		WHERE order_id=$1 ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	var items []domain.OrderItem
	for rows.Next() {
		var (
			it    domain.OrderItem
			price int64
		)
		if err := rows.Scan(&it.ItemID, &it.Quantity, &price); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.UnitPrice = domain.Money(price)
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT position, option_id, name, additional_price FROM order_item_options
		WHERE order_id=$1 ORDER BY position, option_position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order item options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pos   int
			opt   domain.SelectedOption
			price int64
		)
		if err := rows.Scan(&pos, &opt.OptionID, &opt.Name, &price); err != nil {
			return nil, fmt.Errorf("scan order item option: %w", err)
		}
		if pos < 0 || pos >= len(items) {
			continue
		}
		opt.AdditionalPrice = domain.Money(price)
		items[pos].SelectedOptions = append(items[pos].SelectedOptions, opt)
	}
	return items, rows.Err()
}

func loadReservation(ctx context.Context, q querier, orderID string) (domain.Demand, error) {
	rows, err := q.Query(ctx, `
		SELECT ingredient_id, quantity FROM order_reservations WHERE order_id=$1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	defer rows.Close()

	var d domain.Demand
	for rows.Next() {
		var (
			id  string
			qty int64
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if d == nil {
			d = domain.Demand{}
		}
		d[id] = qty
	}
	return d, rows.Err()
}
