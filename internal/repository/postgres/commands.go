package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"good-food/internal/domain"
)

func (t *pgTx) InsertCommand(ctx context.Context, c domain.Command) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO commands (id, franchise_id, user_id, status, estimated_cost, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.ID, c.FranchiseID, c.UserID, string(c.Status), int64(c.EstimatedCost), c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return writeCommandItems(ctx, t.tx, c)
}

func (t *pgTx) LockCommand(ctx context.Context, id string) (domain.Command, error) {
	c, err := loadCommand(ctx, t.tx, id, true)
	if err != nil {
		return domain.Command{}, translate(err)
	}
	return c, nil
}

func (t *pgTx) SaveCommand(ctx context.Context, c domain.Command) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE commands SET user_id=$2, status=$3, estimated_cost=$4, version=$5, updated_at=$6 WHERE id=$1
	`, c.ID, c.UserID, string(c.Status), int64(c.EstimatedCost), c.Version, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update command: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: domain.EntityCommand, ID: c.ID}
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM command_items WHERE command_id=$1`, c.ID); err != nil {
		return fmt.Errorf("clear command items: %w", err)
	}
	return writeCommandItems(ctx, t.tx, c)
}

func writeCommandItems(ctx context.Context, q querier, c domain.Command) error {
	for pos, it := range c.Items {
		if _, err := q.Exec(ctx, `
			INSERT INTO command_items (command_id, position, ingredient_id, quantity) VALUES ($1,$2,$3,$4)
		`, c.ID, pos, it.IngredientID, it.Quantity); err != nil {
			return fmt.Errorf("insert command item: %w", err)
		}
	}
	return nil
}

func loadCommand(ctx context.Context, q querier, id string, forUpdate bool) (domain.Command, error) {
	query := `
		SELECT id, franchise_id, user_id, status, estimated_cost, version, created_at, updated_at
		FROM commands WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		c      domain.Command
		status string
		cost   int64
	)
	err := q.QueryRow(ctx, query, id).Scan(&c.ID, &c.FranchiseID, &c.UserID, &status, &cost, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Command{}, &domain.NotFoundError{Entity: domain.EntityCommand, ID: id}
	}
	if err != nil {
		return domain.Command{}, fmt.Errorf("load command: %w", err)
	}
	c.Status = domain.CommandStatus(status)
	c.EstimatedCost = domain.Money(cost)

	rows, err := q.Query(ctx, `
		SELECT ingredient_id, quantity FROM command_items WHERE command_id=$1 ORDER BY position
	`, id)
	if err != nil {
		return domain.Command{}, fmt.Errorf("load command items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.CommandItem
		if err := rows.Scan(&it.IngredientID, &it.Quantity); err != nil {
			return domain.Command{}, fmt.Errorf("scan command item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.Command{}, fmt.Errorf("load command items: %w", err)
	}
	return c, nil
}
