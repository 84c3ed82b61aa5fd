package graph

import (
	"context"
	"strings"
	"time"

	"github.com/poiesic/duograph/core"
)

// QueryRelationships returns facts matching the query text, with the names
// of the entities they connect. An empty groupID searches all groups. When
// validAt is nil only currently-valid facts are returned; otherwise facts
// whose validity interval covers that instant, superseded or not.
func (s *Store) QueryRelationships(ctx context.Context, query, groupID string, validAt *time.Time) ([]*core.FactResult, error) {
	facts, err := s.repo.FactsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	filtered := facts[:0:0]
	for _, fact := range facts {
		if validAt == nil {
			if fact.Current() {
				filtered = append(filtered, fact)
			}
		} else if fact.ValidAt(*validAt) {
			filtered = append(filtered, fact)
		}
	}

	return s.matchFacts(ctx, filtered, query)
}

// QueryTemporal returns facts whose validity interval overlaps the given
// range, ordered by ValidFrom. Nil bounds leave that side of the range
// open; superseded facts are included, which is the point of temporal
// queries.
func (s *Store) QueryTemporal(ctx context.Context, query, groupID string, from, until *time.Time) ([]*core.FactResult, error) {
	facts, err := s.repo.FactsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	filtered := facts[:0:0]
	for _, fact := range facts {
		if overlaps(fact, from, until) {
			filtered = append(filtered, fact)
		}
	}

	return s.matchFacts(ctx, filtered, query)
}

// matchFacts resolves entity names and keeps facts whose statement,
// relation, or endpoint names contain any query term. An empty query
// matches everything.
func (s *Store) matchFacts(ctx context.Context, facts []*core.Fact, query string) ([]*core.FactResult, error) {
	names, err := s.entityNames(ctx, facts)
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	var results []*core.FactResult
	for _, fact := range facts {
		sourceName := names[fact.SourceId]
		targetName := names[fact.TargetId]
		if !matchesTerms(fact, sourceName, targetName, terms) {
			continue
		}
		results = append(results, &core.FactResult{
			Fact:       fact,
			SourceName: sourceName,
			TargetName: targetName,
		})
	}
	return results, nil
}

func (s *Store) entityNames(ctx context.Context, facts []*core.Fact) (map[core.ID]string, error) {
	idSet := make(map[core.ID]bool)
	for _, fact := range facts {
		idSet[fact.SourceId] = true
		idSet[fact.TargetId] = true
	}
	ids := make([]core.ID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	entities, err := s.repo.GetEntities(ctx, ids...)
	if err != nil {
		return nil, err
	}

	names := make(map[core.ID]string, len(entities))
	for _, entity := range entities {
		names[entity.Id] = entity.Name
	}
	return names, nil
}

func matchesTerms(fact *core.Fact, sourceName, targetName string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(fact.Statement + " " + fact.Relation + " " + sourceName + " " + targetName)
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// overlaps reports whether the fact's validity interval intersects the
// half-open range [from, until). Nil bounds are open.
func overlaps(fact *core.Fact, from, until *time.Time) bool {
	if until != nil && !fact.ValidFrom.Before(*until) {
		return false
	}
	if from != nil && fact.ValidUntil != nil && !fact.ValidUntil.After(*from) {
		return false
	}
	return true
}
