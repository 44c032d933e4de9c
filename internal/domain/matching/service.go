package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"refpay/internal/domain/referees"
)

type Service struct {
	store    StoreAPI
	registry RegistryReader
	now      func() time.Time
}

func NewService(store StoreAPI, registry RegistryReader) *Service {
	return &Service{store: store, registry: registry, now: time.Now}
}

type ConfirmRequest struct {
	ScheduleName   string    `json:"scheduleName"`
	EmployeeNumber string    `json:"employeeNumber"`
	IsManual       bool      `json:"isManual"`
	DateProcessed  time.Time `json:"dateProcessed"`
}

// Resolve loads the registry and mapping snapshots once and resolves every name against them.
func (s *Service) Resolve(ctx context.Context, scheduleNames []string) ([]Result, error) {
	registry, cache, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	results := FindMatches(scheduleNames, registry, cache)

	var review int
	for _, result := range results {
		if result.NeedsReview() {
			review++
		}
	}
	slog.Info("schedule names resolved", "names", len(scheduleNames), "registry", len(registry), "needsReview", review)
	return results, nil
}

// Confirm stores the chosen referee for the schedule name, replacing any
// earlier confirmation for the same normalized name.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (Mapping, Result, error) {
	if Normalize(req.ScheduleName) == "" {
		return Mapping{}, Result{}, ErrEmptyScheduleName
	}
	registry, err := s.registry.ListReferees(ctx)
	if err != nil {
		return Mapping{}, Result{}, fmt.Errorf("load registry: %w", err)
	}
	referee, ok := findReferee(registry, strings.TrimSpace(req.EmployeeNumber))
	if !ok {
		return Mapping{}, Result{}, referees.ErrNotFound
	}

	now := s.now().UTC()
	processed := req.DateProcessed
	if processed.IsZero() {
		processed = now
	}
	mapping := Confirm(req.ScheduleName, referee, req.IsManual, processed, now)
	if err := s.store.UpsertMapping(ctx, mapping); err != nil {
		return Mapping{}, Result{}, fmt.Errorf("store mapping: %w", err)
	}

	result := Confirmed(Result{ScheduleName: req.ScheduleName}, referee)
	slog.Info("match confirmed", "scheduleName", mapping.ScheduleName, "employeeNumber", mapping.EmployeeNumber, "manual", mapping.IsManual)
	return mapping, result, nil
}

func (s *Service) ListMappings(ctx context.Context) ([]Mapping, error) {
	return s.store.ListMappings(ctx)
}

func (s *Service) GetMapping(ctx context.Context, scheduleName string) (Mapping, error) {
	return s.store.GetMapping(ctx, Normalize(scheduleName))
}

func (s *Service) DeleteMapping(ctx context.Context, scheduleName string) error {
	return s.store.DeleteMapping(ctx, Normalize(scheduleName))
}

// PruneOrphans drops mappings that point at referees no longer in the registry.
func (s *Service) PruneOrphans(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteOrphanMappings(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Info("orphan mappings pruned", "removed", removed)
	}
	return removed, nil
}

func (s *Service) snapshot(ctx context.Context) ([]referees.Referee, Cache, error) {
	registry, err := s.registry.ListReferees(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load registry: %w", err)
	}
	mappings, err := s.store.ListMappings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load mappings: %w", err)
	}
	return registry, NewCache(mappings), nil
}
