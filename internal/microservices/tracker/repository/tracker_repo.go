package repository

import (
	"context"

	"good-food/internal/domain"
	"good-food/internal/repository"
)

// TrackerRepoInterface is the read side. It never takes row locks.
type TrackerRepoInterface interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetCommand(ctx context.Context, id string) (domain.Command, error)
	GetTimeline(ctx context.Context, entity, id string, limit, offset int) ([]domain.StatusChange, error)
	ListStock(ctx context.Context, franchiseID string) ([]domain.Stock, error)
	GetStock(ctx context.Context, franchiseID, ingredientID string) (domain.Stock, error)
}

type TrackerRepo struct {
	store repository.Store
}

func NewTrackerRepo(store repository.Store) *TrackerRepo { return &TrackerRepo{store: store} }

func (r *TrackerRepo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return r.store.GetOrder(ctx, id)
}

func (r *TrackerRepo) GetCommand(ctx context.Context, id string) (domain.Command, error) {
	return r.store.GetCommand(ctx, id)
}

// GetTimeline returns one page of the status log, oldest first.
func (r *TrackerRepo) GetTimeline(ctx context.Context, entity, id string, limit, offset int) ([]domain.StatusChange, error) {
	all, err := r.store.Timeline(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return []domain.StatusChange{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *TrackerRepo) ListStock(ctx context.Context, franchiseID string) ([]domain.Stock, error) {
	return r.store.ListStock(ctx, franchiseID)
}

func (r *TrackerRepo) GetStock(ctx context.Context, franchiseID, ingredientID string) (domain.Stock, error) {
	return r.store.GetStock(ctx, franchiseID, ingredientID)
}
