package postgres

import (
	"context"
	"fmt"

	"good-food/internal/domain"
)

// LockStock ignores the caller's order and locks by ingredient_id; callers
// pass sorted ids anyway so both stores agree.
func (t *pgTx) LockStock(ctx context.Context, franchiseID string, ingredientIDs []string) (map[string]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT ingredient_id, quantity FROM stock
		WHERE franchise_id=$1 AND ingredient_id = ANY($2)
		ORDER BY ingredient_id
		FOR UPDATE
	`, franchiseID, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("lock stock: %w", translate(err))
	}
	defer rows.Close()

	out := make(map[string]int64, len(ingredientIDs))
	for rows.Next() {
		var (
			id  string
			qty int64
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("scan stock: %w", translate(err))
		}
		out[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock stock: %w", translate(err))
	}
	return out, nil
}

func (t *pgTx) AddStock(ctx context.Context, franchiseID, ingredientID string, delta int64) (int64, error) {
	var qty int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock (franchise_id, ingredient_id, quantity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (franchise_id, ingredient_id)
		DO UPDATE SET quantity = stock.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING quantity
	`, franchiseID, ingredientID, delta).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("add stock %s/%s: %w", franchiseID, ingredientID, translate(err))
	}
	return qty, nil
}

func (t *pgTx) PutStock(ctx context.Context, franchiseID, ingredientID string, quantity int64) (domain.Stock, error) {
	st := domain.Stock{FranchiseID: franchiseID, IngredientID: ingredientID}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock (franchise_id, ingredient_id, quantity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (franchise_id, ingredient_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
		RETURNING quantity, updated_at
	`, franchiseID, ingredientID, quantity).Scan(&st.Quantity, &st.UpdatedAt)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("put stock %s/%s: %w", franchiseID, ingredientID, translate(err))
	}
	return st, nil
}
