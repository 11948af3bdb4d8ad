package service

import (
	"good-food/internal/microservices/tracker/repository"
	rootrepo "good-food/internal/repository"
)

type Service struct {
	TrackerService TrackerServiceInterface
}

func NewService(store rootrepo.Store) *Service {
	return &Service{TrackerService: NewTrackerService(repository.NewTrackerRepo(store))}
}
