package service

import (
	"context"

	"good-food/internal/domain"
	"good-food/internal/repository"
)

type RecipeResolverInterface interface {
	Expand(ctx context.Context, catalog repository.CatalogReader, franchiseID string, items []domain.OrderItem) (domain.Demand, error)
}

type RecipeResolver struct{}

func NewRecipeResolver() RecipeResolverInterface {
	return &RecipeResolver{}
}

// Expand sums quantityRequired x item quantity per ingredient over all items.
// A dish must exist in franchiseID's catalog and be available; a dish with no
// recipe rows contributes nothing. A sum that overflows is a ValidationError.
func (rr *RecipeResolver) Expand(ctx context.Context, catalog repository.CatalogReader, franchiseID string, items []domain.OrderItem) (domain.Demand, error) {
	demand := domain.Demand{}
	seen := make(map[string][]domain.DishIngredient, len(items))

	for _, it := range items {
		recipe, ok := seen[it.ItemID]
		if !ok {
			dish, err := catalog.GetDish(ctx, it.ItemID)
			if err != nil {
				return nil, err
			}
			if dish.FranchiseID != franchiseID {
				return nil, &domain.NotFoundError{Entity: domain.EntityDish, ID: it.ItemID}
			}
			if !dish.Available {
				return nil, &domain.DishUnavailableError{DishID: it.ItemID}
			}
			recipe, err = catalog.DishIngredients(ctx, it.ItemID)
			if err != nil {
				return nil, err
			}
			seen[it.ItemID] = recipe
		}
		for _, r := range recipe {
			need, err := domain.MulQuantity("quantity of "+r.IngredientID, r.QuantityRequired, it.Quantity)
			if err != nil {
				return nil, err
			}
			if err := demand.Add(r.IngredientID, need); err != nil {
				return nil, err
			}
		}
	}
	return demand, nil
}
