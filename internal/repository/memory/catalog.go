package memory

import (
	"context"
	"fmt"
	"sort"

	"good-food/internal/domain"
)

func (s *Store) CreateFranchise(_ context.Context, f domain.Franchise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.franchises[f.ID]; ok {
		return &domain.ConflictError{Entity: domain.EntityFranchise, ID: f.ID}
	}
	s.franchises[f.ID] = f
	return nil
}

func (s *Store) GetFranchise(_ context.Context, id string) (domain.Franchise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.franchises[id]
	if !ok {
		return domain.Franchise{}, &domain.NotFoundError{Entity: domain.EntityFranchise, ID: id}
	}
	return f, nil
}

func (s *Store) CreateIngredient(_ context.Context, i domain.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ingredients[i.ID]; ok {
		return &domain.ConflictError{Entity: domain.EntityIngredient, ID: i.ID}
	}
	s.ingredients[i.ID] = i
	return nil
}

func (s *Store) GetIngredient(_ context.Context, id string) (domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.ingredients[id]
	if !ok {
		return domain.Ingredient{}, &domain.NotFoundError{Entity: domain.EntityIngredient, ID: id}
	}
	return i, nil
}

func (s *Store) UpdateIngredient(_ context.Context, id string, fn func(*domain.Ingredient) error) (domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.ingredients[id]
	if !ok {
		return domain.Ingredient{}, &domain.NotFoundError{Entity: domain.EntityIngredient, ID: id}
	}
	if err := fn(&i); err != nil {
		return domain.Ingredient{}, err
	}
	i.ID = id
	s.ingredients[id] = i
	return i, nil
}

func (s *Store) CreateDish(_ context.Context, d domain.Dish) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.franchises[d.FranchiseID]; !ok {
		return &domain.NotFoundError{Entity: domain.EntityFranchise, ID: d.FranchiseID}
	}
	if _, ok := s.dishes[d.ID]; ok {
		return &domain.ConflictError{Entity: domain.EntityDish, ID: d.ID}
	}
	s.dishes[d.ID] = d
	s.recipes[d.ID] = nil
	return nil
}

func (s *Store) GetDish(_ context.Context, id string) (domain.Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dishes[id]
	if !ok {
		return domain.Dish{}, &domain.NotFoundError{Entity: domain.EntityDish, ID: id}
	}
	return d, nil
}

func (s *Store) UpdateDish(_ context.Context, id string, fn func(*domain.Dish) error) (domain.Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dishes[id]
	if !ok {
		return domain.Dish{}, &domain.NotFoundError{Entity: domain.EntityDish, ID: id}
	}
	if err := fn(&d); err != nil {
		return domain.Dish{}, err
	}
	// Identity and ownership are fixed at creation.
	d.ID, d.FranchiseID = id, s.dishes[id].FranchiseID
	s.dishes[id] = d
	return d, nil
}

func (s *Store) DeleteDish(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dishes[id]; !ok {
		return &domain.NotFoundError{Entity: domain.EntityDish, ID: id}
	}
	delete(s.dishes, id)
	delete(s.recipes, id)
	return nil
}

func (s *Store) Recipe(_ context.Context, dishID string) ([]domain.DishIngredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dishes[dishID]; !ok {
		return nil, &domain.NotFoundError{Entity: domain.EntityDish, ID: dishID}
	}
	out := append([]domain.DishIngredient{}, s.recipes[dishID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out, nil
}

func (s *Store) AddRecipeLine(_ context.Context, di domain.DishIngredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dishes[di.DishID]; !ok {
		return &domain.NotFoundError{Entity: domain.EntityDish, ID: di.DishID}
	}
	if _, ok := s.ingredients[di.IngredientID]; !ok {
		return &domain.NotFoundError{Entity: domain.EntityIngredient, ID: di.IngredientID}
	}
	if s.recipeIndex(di.DishID, di.IngredientID) >= 0 {
		return &domain.ConflictError{Entity: domain.EntityRecipeLine, ID: recipeLineID(di.DishID, di.IngredientID)}
	}
	s.recipes[di.DishID] = append(s.recipes[di.DishID], di)
	return nil
}

func (s *Store) SetRecipeLine(_ context.Context, di domain.DishIngredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.recipeIndex(di.DishID, di.IngredientID)
	if idx < 0 {
		return &domain.NotFoundError{Entity: domain.EntityRecipeLine, ID: recipeLineID(di.DishID, di.IngredientID)}
	}
	s.recipes[di.DishID][idx] = di
	return nil
}

func (s *Store) RemoveRecipeLine(_ context.Context, dishID, ingredientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.recipeIndex(dishID, ingredientID)
	if idx < 0 {
		return &domain.NotFoundError{Entity: domain.EntityRecipeLine, ID: recipeLineID(dishID, ingredientID)}
	}
	old := s.recipes[dishID]
	rows := make([]domain.DishIngredient, 0, len(old)-1)
	rows = append(rows, old[:idx]...)
	s.recipes[dishID] = append(rows, old[idx+1:]...)
	return nil
}

// recipeIndex must be called with s.mu held.
func (s *Store) recipeIndex(dishID, ingredientID string) int {
	for i, r := range s.recipes[dishID] {
		if r.IngredientID == ingredientID {
			return i
		}
	}
	return -1
}

func recipeLineID(dishID, ingredientID string) string {
	return fmt.Sprintf("%s/%s", dishID, ingredientID)
}
