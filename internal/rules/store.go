// Package rules provides the fact store and condition matcher for
// city-scoped regulatory rules.
package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// Source supplies validated rule records from durable storage. The store
// treats them as already-structured data; document ingestion happens upstream.
type Source interface {
	AllRules(ctx context.Context) ([]models.Rule, error)
}

// FactStore holds an immutable snapshot of rules keyed by lower-cased city.
// The serving path reads the snapshot without coordination; Reload swaps in a
// fresh snapshot atomically.
type FactStore struct {
	mu     sync.RWMutex
	byCity map[string][]models.Rule
	count  int
}

// NewFactStore returns an empty fact store.
func NewFactStore() *FactStore {
	return &FactStore{byCity: make(map[string][]models.Rule)}
}

// LoadFromSource replaces the snapshot with all rules from the source.
func (s *FactStore) LoadFromSource(ctx context.Context, src Source) error {
	all, err := src.AllRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	s.Replace(all)
	log.Info().Int("rules", len(all)).Int("cities", s.CityCount()).Msg("Rule snapshot loaded")
	return nil
}

// Replace swaps the full snapshot. Rule order within a city is preserved as
// supplied; it becomes the matcher's first-seen order.
func (s *FactStore) Replace(all []models.Rule) {
	byCity := make(map[string][]models.Rule)
	for _, r := range all {
		key := cityKey(r.City)
		byCity[key] = append(byCity[key], r)
	}

	s.mu.Lock()
	s.byCity = byCity
	s.count = len(all)
	s.mu.Unlock()
}

// RulesForCity returns the snapshot's rules for a city. The returned slice is
// shared and must not be mutated. A city with no rules yields an empty slice,
// which downstream components treat as "no facts available".
func (s *FactStore) RulesForCity(city string) []models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byCity[cityKey(city)]
}

// Cities returns the cities present in the snapshot.
func (s *FactStore) Cities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cities := make([]string, 0, len(s.byCity))
	for c := range s.byCity {
		cities = append(cities, c)
	}
	return cities
}

// CityCount returns the number of cities in the snapshot.
func (s *FactStore) CityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCity)
}

// RuleCount returns the total number of rules in the snapshot.
func (s *FactStore) RuleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// cityKey normalizes city names for case-insensitive lookup, mirroring the
// ilike semantics of the originating rule database.
func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
