package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

// CrawlRepository implements storage.CrawlRepository for BadgerDB. Records
// are keyed by the composite (root URL, collection) pair; there is no key
// shape for a URL alone.
type CrawlRepository struct {
	backend *Backend
}

var _ storage.CrawlRepository = (*CrawlRepository)(nil)

// NewCrawlRepository creates a new CrawlRepository.
func NewCrawlRepository(backend *Backend) *CrawlRepository {
	return &CrawlRepository{backend: backend}
}

// Close is a no-op; the repository holds no sequences.
func (r *CrawlRepository) Close() error {
	return nil
}

// RecordSession upserts the session record for its (RootURL, Collection)
// pair. The write happens in a single transaction, so concurrent recorders
// cannot interleave a read-modify-write.
func (r *CrawlRepository) RecordSession(ctx context.Context, session *core.CrawlSession) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCrawlKey(session.RootURL, session.Collection)
		if err := tx.Set(key, storage.MarshalCrawlSession(session)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LookupSession retrieves the record for the exact (rootURL, collection)
// pair.
func (r *CrawlRepository) LookupSession(ctx context.Context, rootURL, collection string) (*core.CrawlSession, error) {
	var result *core.CrawlSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCrawlKey(rootURL, collection))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalCrawlSession(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// DeleteSession removes the record for the exact (rootURL, collection)
// pair. Deleting a missing record is not an error.
func (r *CrawlRepository) DeleteSession(ctx context.Context, rootURL, collection string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCrawlKey(rootURL, collection)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
