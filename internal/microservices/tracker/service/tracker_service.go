package service

import (
	"context"

	"good-food/internal/domain"
	"good-food/internal/microservices/tracker/models"
	"good-food/internal/microservices/tracker/repository"
)

type TrackerServiceInterface interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetCommand(ctx context.Context, id string) (domain.Command, error)
	GetTimeline(ctx context.Context, entity, id string, limit, offset int) (models.Timeline, error)
	ListStock(ctx context.Context, franchiseID string) (models.StockList, error)
	GetStock(ctx context.Context, franchiseID, ingredientID string) (domain.Stock, error)
}

type TrackerService struct {
	repo repository.TrackerRepoInterface
}

func NewTrackerService(repo repository.TrackerRepoInterface) *TrackerService {
	return &TrackerService{repo: repo}
}

func (s *TrackerService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *TrackerService) GetCommand(ctx context.Context, id string) (domain.Command, error) {
	return s.repo.GetCommand(ctx, id)
}

// GetTimeline 404s for unknown entities instead of returning an empty log.
func (s *TrackerService) GetTimeline(ctx context.Context, entity, id string, limit, offset int) (models.Timeline, error) {
	var err error
	switch entity {
	case domain.EntityOrder:
		_, err = s.repo.GetOrder(ctx, id)
	case domain.EntityCommand:
		_, err = s.repo.GetCommand(ctx, id)
	default:
		err = &domain.ValidationError{Field: "entity", Reason: "must be order or command"}
	}
	if err != nil {
		return models.Timeline{}, err
	}
	events, err := s.repo.GetTimeline(ctx, entity, id, limit, offset)
	if err != nil {
		return models.Timeline{}, err
	}
	return models.Timeline{Entity: entity, EntityID: id, Events: events}, nil
}

func (s *TrackerService) ListStock(ctx context.Context, franchiseID string) (models.StockList, error) {
	items, err := s.repo.ListStock(ctx, franchiseID)
	if err != nil {
		return models.StockList{}, err
	}
	if items == nil {
		items = []domain.Stock{}
	}
	return models.StockList{FranchiseID: franchiseID, Items: items}, nil
}

func (s *TrackerService) GetStock(ctx context.Context, franchiseID, ingredientID string) (domain.Stock, error) {
	return s.repo.GetStock(ctx, franchiseID, ingredientID)
}
