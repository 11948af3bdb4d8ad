package models

import (
	"context"
	"time"

	"good-food/internal/domain"
)

type Timeline struct {
	Entity   string                `json:"entity"`
	EntityID string                `json:"entity_id"`
	Events   []domain.StatusChange `json:"events"`
}

type StockList struct {
	FranchiseID string         `json:"franchise_id"`
	Items       []domain.Stock `json:"items"`
}

type Health struct {
	Status  string            `json:"status"` // "ok" | "degraded"
	Service string            `json:"service"`
	Time    time.Time         `json:"time"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck checks one dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error
