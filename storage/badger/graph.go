package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

// GraphRepository implements storage.GraphRepository for BadgerDB.
type GraphRepository struct {
	backend    *Backend
	episodeSeq *badger.Sequence
	factSeq    *badger.Sequence
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) (*GraphRepository, error) {
	episodeSeq, err := backend.GetSequence(episodeIDSeq)
	if err != nil {
		return nil, err
	}
	factSeq, err := backend.GetSequence(factIDSeq)
	if err != nil {
		episodeSeq.Release()
		return nil, err
	}

	return &GraphRepository{
		backend:    backend,
		episodeSeq: episodeSeq,
		factSeq:    factSeq,
	}, nil
}

// Close releases the ID sequences.
func (r *GraphRepository) Close() error {
	err := r.episodeSeq.Release()
	if ferr := r.factSeq.Release(); err == nil {
		err = ferr
	}
	return err
}

// withConflictRetry re-runs fn while it aborts with badger.ErrConflict.
// Read-modify-write transactions on shared keys lose the optimistic commit
// race when ingestion workers touch the same record concurrently; the retry
// re-reads the winner's version and merges against it.
func (r *GraphRepository) withConflictRetry(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// AddEpisode stores a new episode with its provenance and group index rows.
func (r *GraphRepository) AddEpisode(ctx context.Context, episode *core.Episode) (*core.Episode, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := r.putEpisodeTx(tx, episode); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return episode, err
}

// putEpisodeTx assigns the episode an ID and timestamps if needed and writes
// its primary, provenance, and group index rows.
func (r *GraphRepository) putEpisodeTx(tx *badger.Txn, episode *core.Episode) error {
	if episode.Id == 0 {
		nextID, err := nextSequenceID(r.episodeSeq)
		if err != nil {
			return err
		}
		episode.Id = nextID
	}
	episode.InsertedAt = time.Now().UTC()
	if episode.ReferenceTime.IsZero() {
		episode.ReferenceTime = episode.InsertedAt
	}

	if err := tx.Set(makeEpisodeKey(episode.Id), storage.MarshalEpisode(episode)); err != nil {
		return err
	}
	if err := tx.Set(makeEpisodeDocKey(episode.DocumentId, episode.Id), storage.MarshalID(episode.Id)); err != nil {
		return err
	}
	return tx.Set(makeEpisodeGroupKey(episode.GroupId, episode.Id), storage.MarshalID(episode.Id))
}

// GetEpisode retrieves a single episode by ID.
func (r *GraphRepository) GetEpisode(ctx context.Context, id core.ID) (*core.Episode, error) {
	var result *core.Episode
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEpisode(tx, makeEpisodeKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// EpisodesByDocument returns every episode whose provenance back-reference
// matches the document ID. Index keys encode the episode ID in BigEndian,
// so iteration order is ID order.
func (r *GraphRepository) EpisodesByDocument(ctx context.Context, docID core.ID) ([]*core.Episode, error) {
	var results []*core.Episode
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = r.episodesByIndex(tx, makeEpisodeDocScanKey(docID))
		return err
	}, false)
	return results, err
}

// EpisodesByGroup returns every episode in the group, ordered by reference
// time.
func (r *GraphRepository) EpisodesByGroup(ctx context.Context, groupID string) ([]*core.Episode, error) {
	var results []*core.Episode
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = r.episodesByIndex(tx, makeEpisodeGroupScanKey(groupID))
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Episode) int {
		return a.ReferenceTime.Compare(b.ReferenceTime)
	})
	return results, nil
}

// DeleteEpisodesByDocument removes every episode whose provenance
// back-reference matches the document ID and returns how many were removed.
func (r *GraphRepository) DeleteEpisodesByDocument(ctx context.Context, docID core.ID) (int, error) {
	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		episodes, err := r.episodesByIndex(tx, makeEpisodeDocScanKey(docID))
		if err != nil {
			return err
		}

		for _, episode := range episodes {
			if err := tx.Delete(makeEpisodeKey(episode.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeEpisodeDocKey(docID, episode.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeEpisodeGroupKey(episode.GroupId, episode.Id)); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// AddEpisodeGraph stores an episode together with the entities and facts
// extracted from it in a single transaction, so either the whole window
// lands or none of it does. A commit that loses to a concurrent window
// touching the same entities or edges is retried against the winner's
// version rather than failed.
func (r *GraphRepository) AddEpisodeGraph(ctx context.Context, episode *core.Episode, mentions []storage.EntityMention, assertions []storage.FactAssertion) (*storage.EpisodeGraph, error) {
	var result *storage.EpisodeGraph
	err := r.withConflictRetry(ctx, func() error {
		return r.backend.WithTx(func(tx *badger.Txn) error {
			if err := r.putEpisodeTx(tx, episode); err != nil {
				return err
			}

			entityIDs := make(map[string]core.ID, len(mentions))
			for _, mention := range mentions {
				entity, err := upsertEntityTx(tx, mention.Name, mention.Type, episode.GroupId, episode.Id)
				if err != nil {
					return err
				}
				entityIDs[mention.Name] = entity.Id
			}

			stored := 0
			for _, assertion := range assertions {
				sourceID, okSource := entityIDs[assertion.Source]
				targetID, okTarget := entityIDs[assertion.Target]
				if !okSource || !okTarget {
					continue
				}

				fact := core.Fact{
					SourceId:  sourceID,
					TargetId:  targetID,
					Relation:  assertion.Relation,
					Statement: assertion.Statement,
					GroupId:   episode.GroupId,
					ValidFrom: episode.ReferenceTime,
					Episodes:  []core.ID{episode.Id},
				}
				if _, err := r.addFactTx(tx, &fact); err != nil {
					return err
				}
				stored++
			}

			result = &storage.EpisodeGraph{
				Episode:     episode,
				EntityCount: len(entityIDs),
				FactCount:   stored,
			}
			return tx.Commit()
		}, true)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertEntity records that an episode mentions the (name, type) tuple
// within a group. Entity IDs derive from the tuple, so concurrent upserts
// of the same tuple converge on one record; losing commits are retried and
// merge against the winner.
func (r *GraphRepository) UpsertEntity(ctx context.Context, name, entityType, groupID string, episodeID core.ID) (*core.Entity, error) {
	var result *core.Entity
	err := r.withConflictRetry(ctx, func() error {
		return r.backend.WithTx(func(tx *badger.Txn) error {
			var err error
			result, err = upsertEntityTx(tx, name, entityType, groupID, episodeID)
			if err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// upsertEntityTx merges one episode reference into the entity record for
// the (name, type) tuple, creating it if absent. Each call re-reads the
// record so retried transactions merge against the latest version.
func upsertEntityTx(tx *badger.Txn, name, entityType, groupID string, episodeID core.ID) (*core.Entity, error) {
	entity := &core.Entity{
		Name:    name,
		Type:    entityType,
		GroupId: groupID,
	}
	entity.Id = core.IDFromContent(entity.Tuple())

	key := makeEntityKey(entity.Id)
	existing, err := readEntity(tx, key)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing != nil {
		entity = existing
		if !slices.Contains(entity.Episodes, episodeID) {
			entity.Episodes = append(entity.Episodes, episodeID)
		}
		entity.UpdatedAt = now
	} else {
		entity.Episodes = []core.ID{episodeID}
		entity.InsertedAt = now
		entity.UpdatedAt = now
	}

	if err := tx.Set(key, storage.MarshalEntity(entity)); err != nil {
		return nil, err
	}
	return entity, nil
}

// GetEntities retrieves entities by their IDs. Missing IDs are skipped.
func (r *GraphRepository) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	var results []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				results = append(results, entity)
			}
		}
		return nil
	}, false)
	return results, err
}

// AddFact stores a fact, superseding any current fact with the same edge
// key in the same group. If the statement is unchanged the existing fact
// gains the new episodes as provenance; otherwise the old fact's validity
// interval is closed at the new fact's ValidFrom and the new fact becomes
// the current edge.
func (r *GraphRepository) AddFact(ctx context.Context, fact *core.Fact) (*core.Fact, error) {
	proposed := *fact
	var result *core.Fact
	err := r.withConflictRetry(ctx, func() error {
		return r.backend.WithTx(func(tx *badger.Txn) error {
			// Fresh working copy per attempt, so a retry re-reads the
			// edge instead of merging against its own stale view.
			attempt := proposed
			var err error
			result, err = r.addFactTx(tx, &attempt)
			if err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
	if err != nil {
		return nil, err
	}
	*fact = *result
	return fact, nil
}

// addFactTx applies the supersession rules for one fact within tx and
// returns the fact that now owns the edge (the existing one when only
// provenance was extended, otherwise the inserted one).
func (r *GraphRepository) addFactTx(tx *badger.Txn, fact *core.Fact) (*core.Fact, error) {
	now := time.Now().UTC()
	if fact.ValidFrom.IsZero() {
		fact.ValidFrom = now
	}

	edgeKey := makeFactEdgeKey(fact.GroupId, fact.Relation, fact.SourceId, fact.TargetId)
	current, err := readFactByEdge(tx, edgeKey)
	if err != nil {
		return nil, err
	}

	if current != nil {
		if current.Statement == fact.Statement {
			// Same assertion, extend provenance only.
			changed := false
			for _, ep := range fact.Episodes {
				if !slices.Contains(current.Episodes, ep) {
					current.Episodes = append(current.Episodes, ep)
					changed = true
				}
			}
			if changed {
				if err := tx.Set(makeFactKey(current.Id), storage.MarshalFact(current)); err != nil {
					return nil, err
				}
			}
			return current, nil
		}

		// Different assertion on the same edge: close the old interval.
		until := fact.ValidFrom
		current.ValidUntil = &until
		if err := tx.Set(makeFactKey(current.Id), storage.MarshalFact(current)); err != nil {
			return nil, err
		}
	}

	if fact.Id == 0 {
		nextID, err := nextSequenceID(r.factSeq)
		if err != nil {
			return nil, err
		}
		fact.Id = nextID
	}
	fact.InsertedAt = now

	if err := tx.Set(makeFactKey(fact.Id), storage.MarshalFact(fact)); err != nil {
		return nil, err
	}
	if err := tx.Set(makeFactGroupKey(fact.GroupId, fact.Id), storage.MarshalID(fact.Id)); err != nil {
		return nil, err
	}
	if err := tx.Set(edgeKey, storage.MarshalID(fact.Id)); err != nil {
		return nil, err
	}
	return fact, nil
}

// FactsByGroup returns every fact in the group, including superseded ones,
// ordered by ValidFrom. An empty groupID returns facts from all groups.
func (r *GraphRepository) FactsByGroup(ctx context.Context, groupID string) ([]*core.Fact, error) {
	var results []*core.Fact
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if groupID == "" {
			// Scan the primary records directly.
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(factPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Rewind(); iter.Valid(); iter.Next() {
				var fact *core.Fact
				err := iter.Item().Value(func(val []byte) error {
					var err error
					fact, err = storage.UnmarshalFact(val)
					return err
				})
				if err != nil {
					return err
				}
				results = append(results, fact)
			}
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeFactGroupScanKey(groupID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var factID core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				factID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			fact, err := readFact(tx, makeFactKey(factID))
			if err != nil {
				return err
			}
			if fact != nil {
				results = append(results, fact)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Fact) int {
		return a.ValidFrom.Compare(b.ValidFrom)
	})
	return results, nil
}

// Helper methods

func nextSequenceID(seq *badger.Sequence) (core.ID, error) {
	nextID, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

func (r *GraphRepository) episodesByIndex(tx *badger.Txn, prefix []byte) ([]*core.Episode, error) {
	var episodes []*core.Episode
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var episodeID core.ID
		err := iter.Item().Value(func(val []byte) error {
			var err error
			episodeID, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return nil, err
		}

		episode, err := readEpisode(tx, makeEpisodeKey(episodeID))
		if err != nil {
			return nil, err
		}
		if episode != nil {
			episodes = append(episodes, episode)
		}
	}
	return episodes, nil
}

func readEpisode(tx *badger.Txn, key []byte) (*core.Episode, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var episode *core.Episode
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		episode, unmarshalErr = storage.UnmarshalEpisode(val)
		return unmarshalErr
	})
	return episode, err
}

func readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entity, unmarshalErr = storage.UnmarshalEntity(val)
		return unmarshalErr
	})
	return entity, err
}

func readFact(tx *badger.Txn, key []byte) (*core.Fact, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var fact *core.Fact
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		fact, unmarshalErr = storage.UnmarshalFact(val)
		return unmarshalErr
	})
	return fact, err
}

// readFactByEdge follows the current-edge index to the fact it points at.
func readFactByEdge(tx *badger.Txn, edgeKey []byte) (*core.Fact, error) {
	item, err := tx.Get(edgeKey)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var factID core.ID
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		factID, unmarshalErr = storage.UnmarshalID(val)
		return unmarshalErr
	})
	if err != nil {
		return nil, err
	}
	return readFact(tx, makeFactKey(factID))
}
