package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"good-food/internal/domain"
)

func (s *Store) CreateFranchise(ctx context.Context, f domain.Franchise) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO franchises (id, name) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING
	`, f.ID, f.Name)
	if err != nil {
		return fmt.Errorf("insert franchise: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ConflictError{Entity: domain.EntityFranchise, ID: f.ID}
	}
	return nil
}

func (s *Store) GetFranchise(ctx context.Context, id string) (domain.Franchise, error) {
	var f domain.Franchise
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM franchises WHERE id=$1`, id).Scan(&f.ID, &f.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Franchise{}, &domain.NotFoundError{Entity: domain.EntityFranchise, ID: id}
	}
	if err != nil {
		return domain.Franchise{}, fmt.Errorf("get franchise: %w", err)
	}
	return f, nil
}

func (s *Store) CreateIngredient(ctx context.Context, i domain.Ingredient) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO ingredients (id, name, unit_price, supplier_id)
		VALUES ($1,$2,$3,NULLIF($4,'')) ON CONFLICT (id) DO NOTHING
	`, i.ID, i.Name, int64(i.UnitPrice), i.SupplierID)
	if err != nil {
		return fmt.Errorf("insert ingredient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ConflictError{Entity: domain.EntityIngredient, ID: i.ID}
	}
	return nil
}

func (s *Store) GetIngredient(ctx context.Context, id string) (domain.Ingredient, error) {
	return getIngredient(ctx, s.pool, id, false)
}

func (s *Store) UpdateIngredient(ctx context.Context, id string, fn func(*domain.Ingredient) error) (domain.Ingredient, error) {
	var out domain.Ingredient
	err := s.inTx(ctx, func(t *pgTx) error {
		ing, err := getIngredient(ctx, t.tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(&ing); err != nil {
			return err
		}
		ing.ID = id
		if _, err := t.tx.Exec(ctx, `
			UPDATE ingredients SET name=$2, unit_price=$3, supplier_id=NULLIF($4,'') WHERE id=$1
		`, ing.ID, ing.Name, int64(ing.UnitPrice), ing.SupplierID); err != nil {
			return fmt.Errorf("update ingredient: %w", err)
		}
		out = ing
		return nil
	})
	return out, err
}

func (s *Store) CreateDish(ctx context.Context, d domain.Dish) error {
	return s.inTx(ctx, func(t *pgTx) error {
		ok, err := franchiseExists(ctx, t.tx, d.FranchiseID)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.NotFoundError{Entity: domain.EntityFranchise, ID: d.FranchiseID}
		}
		tag, err := t.tx.Exec(ctx, `
			INSERT INTO dishes (id, franchise_id, name, base_price, availability, menu_id)
			VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING
		`, d.ID, d.FranchiseID, d.Name, int64(d.BasePrice), d.Available, d.MenuID)
		if err != nil {
			return fmt.Errorf("insert dish: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.ConflictError{Entity: domain.EntityDish, ID: d.ID}
		}
		return nil
	})
}

func (s *Store) GetDish(ctx context.Context, id string) (domain.Dish, error) {
	return getDish(ctx, s.pool, id, false)
}

func (s *Store) UpdateDish(ctx context.Context, id string, fn func(*domain.Dish) error) (domain.Dish, error) {
	var out domain.Dish
	err := s.inTx(ctx, func(t *pgTx) error {
		d, err := getDish(ctx, t.tx, id, true)
		if err != nil {
			return err
		}
		franchiseID := d.FranchiseID
		if err := fn(&d); err != nil {
			return err
		}
		d.ID, d.FranchiseID = id, franchiseID
		if _, err := t.tx.Exec(ctx, `
			UPDATE dishes SET name=$2, base_price=$3, availability=$4, menu_id=$5 WHERE id=$1
		`, d.ID, d.Name, int64(d.BasePrice), d.Available, d.MenuID); err != nil {
			return fmt.Errorf("update dish: %w", err)
		}
		out = d
		return nil
	})
	return out, err
}

// DeleteDish relies on ON DELETE CASCADE for the recipe rows.
func (s *Store) DeleteDish(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dishes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete dish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: domain.EntityDish, ID: id}
	}
	return nil
}

func (s *Store) Recipe(ctx context.Context, dishID string) ([]domain.DishIngredient, error) {
	if _, err := getDish(ctx, s.pool, dishID, false); err != nil {
		return nil, err
	}
	return dishIngredients(ctx, s.pool, dishID)
}

func (s *Store) AddRecipeLine(ctx context.Context, di domain.DishIngredient) error {
	return s.inTx(ctx, func(t *pgTx) error {
		// The dish row lock keeps a concurrent DeleteDish from racing the insert.
		if _, err := getDish(ctx, t.tx, di.DishID, true); err != nil {
			return err
		}
		if _, err := getIngredient(ctx, t.tx, di.IngredientID, false); err != nil {
			return err
		}
		tag, err := t.tx.Exec(ctx, `
			INSERT INTO dish_ingredients (dish_id, ingredient_id, quantity_required)
			VALUES ($1,$2,$3) ON CONFLICT (dish_id, ingredient_id) DO NOTHING
		`, di.DishID, di.IngredientID, di.QuantityRequired)
		if err != nil {
			return fmt.Errorf("insert dish ingredient: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.ConflictError{Entity: domain.EntityRecipeLine, ID: di.DishID + "/" + di.IngredientID}
		}
		return nil
	})
}

func (s *Store) SetRecipeLine(ctx context.Context, di domain.DishIngredient) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dish_ingredients SET quantity_required=$3 WHERE dish_id=$1 AND ingredient_id=$2
	`, di.DishID, di.IngredientID, di.QuantityRequired)
	if err != nil {
		return fmt.Errorf("update dish ingredient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: domain.EntityRecipeLine, ID: di.DishID + "/" + di.IngredientID}
	}
	return nil
}

func (s *Store) RemoveRecipeLine(ctx context.Context, dishID, ingredientID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM dish_ingredients WHERE dish_id=$1 AND ingredient_id=$2
	`, dishID, ingredientID)
	if err != nil {
		return fmt.Errorf("delete dish ingredient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: domain.EntityRecipeLine, ID: dishID + "/" + ingredientID}
	}
	return nil
}
