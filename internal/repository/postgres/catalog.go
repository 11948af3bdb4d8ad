package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"good-food/internal/domain"
)

func getDish(ctx context.Context, q querier, id string, forUpdate bool) (domain.Dish, error) {
	sql := `SELECT id, franchise_id, name, base_price, availability, menu_id FROM dishes WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var (
		d     domain.Dish
		price int64
	)
	err := q.QueryRow(ctx, sql, id).Scan(&d.ID, &d.FranchiseID, &d.Name, &price, &d.Available, &d.MenuID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Dish{}, &domain.NotFoundError{Entity: domain.EntityDish, ID: id}
	}
	if err != nil {
		return domain.Dish{}, fmt.Errorf("get dish: %w", translate(err))
	}
	d.BasePrice = domain.Money(price)
	return d, nil
}

func dishIngredients(ctx context.Context, q querier, dishID string) ([]domain.DishIngredient, error) {
	rows, err := q.Query(ctx, `
		SELECT ingredient_id, quantity_required FROM dish_ingredients
		WHERE dish_id=$1 ORDER BY ingredient_id
	`, dishID)
	if err != nil {
		return nil, fmt.Errorf("dish ingredients: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DishIngredient, 0)
	for rows.Next() {
		di := domain.DishIngredient{DishID: dishID}
		if err := rows.Scan(&di.IngredientID, &di.QuantityRequired); err != nil {
			return nil, fmt.Errorf("scan dish ingredient: %w", err)
		}
		out = append(out, di)
	}
	return out, rows.Err()
}

func getIngredient(ctx context.Context, q querier, id string, forUpdate bool) (domain.Ingredient, error) {
	sql := `SELECT id, name, unit_price, COALESCE(supplier_id, '') FROM ingredients WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var (
		ing   domain.Ingredient
		price int64
	)
	err := q.QueryRow(ctx, sql, id).Scan(&ing.ID, &ing.Name, &price, &ing.SupplierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ingredient{}, &domain.NotFoundError{Entity: domain.EntityIngredient, ID: id}
	}
	if err != nil {
		return domain.Ingredient{}, fmt.Errorf("get ingredient: %w", translate(err))
	}
	ing.UnitPrice = domain.Money(price)
	return ing, nil
}

func franchiseExists(ctx context.Context, q querier, id string) (bool, error) {
	var ok bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM franchises WHERE id=$1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("franchise exists: %w", err)
	}
	return ok, nil
}

func (t *pgTx) GetDish(ctx context.Context, id string) (domain.Dish, error) {
	return getDish(ctx, t.tx, id, false)
}

func (t *pgTx) DishIngredients(ctx context.Context, dishID string) ([]domain.DishIngredient, error) {
	return dishIngredients(ctx, t.tx, dishID)
}

func (t *pgTx) GetIngredient(ctx context.Context, id string) (domain.Ingredient, error) {
	return getIngredient(ctx, t.tx, id, false)
}

func (t *pgTx) FranchiseExists(ctx context.Context, id string) (bool, error) {
	return franchiseExists(ctx, t.tx, id)
}
