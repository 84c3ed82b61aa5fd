package badger

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// CreateCollection declares a collection and its metadata schema.
func (r *DocumentRepository) CreateCollection(ctx context.Context, collection *core.Collection) (*core.Collection, error) {
	if collection.Name == "" || strings.ContainsRune(collection.Name, rune(sep)) {
		return nil, storage.ErrInvalidQuery
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCollectionKey(collection.Name)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		collection.InsertedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalCollection(collection)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return collection, err
}

// GetCollection retrieves a collection by name.
func (r *DocumentRepository) GetCollection(ctx context.Context, name string) (*core.Collection, error) {
	var result *core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readCollection(tx, makeCollectionKey(name))
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

// ListCollections returns all declared collections. Keys are the collection
// names, so iteration order is already name order.
func (r *DocumentRepository) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	var results []*core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(collectionPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var collection *core.Collection
			err := iter.Item().Value(func(val []byte) error {
				var err error
				collection, err = storage.UnmarshalCollection(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, collection)
		}
		return nil
	}, false)
	return results, err
}

// AddDocument stores a new document with its chunks and joins it to the
// named collections.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk, collections []string) (*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// All named collections must be declared before documents join them.
		for _, name := range collections {
			exists, err := readCollection(tx, makeCollectionKey(name))
			if err != nil {
				return err
			}
			if exists == nil {
				return storage.ErrNotFound
			}
		}

		if doc.Id == 0 {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			doc.Id = core.ID(nextID)
		}

		doc.InsertedAt = time.Now().UTC()
		doc.UpdatedAt = doc.InsertedAt

		if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
			return err
		}

		if err := writeChunks(tx, doc.Id, chunks); err != nil {
			return err
		}

		for _, name := range collections {
			if err := tx.Set(makeMemberKey(name, doc.Id), storage.MarshalID(doc.Id)); err != nil {
				return err
			}
			if err := tx.Set(makeMemberOfKey(doc.Id, name), []byte(name)); err != nil {
				return err
			}
		}

		return tx.Commit()
	}, true)

	return doc, err
}

// ReplaceDocument overwrites an existing document's content, metadata and
// chunks. Collection membership is preserved.
func (r *DocumentRepository) ReplaceDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) (*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.Id)
		old, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		doc.InsertedAt = old.InsertedAt
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}

		if err := deleteChunks(tx, doc.Id); err != nil {
			return err
		}
		if err := writeChunks(tx, doc.Id, chunks); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return doc, err
}

// DeleteDocument removes the document, all of its chunks, and its
// membership rows.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if err := deleteChunks(tx, id); err != nil {
			return err
		}

		// Cascade membership through the reverse index.
		names, err := membershipOf(tx, id)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.Delete(makeMemberKey(name, id)); err != nil {
				return err
			}
			if err := tx.Delete(makeMemberOfKey(id, name)); err != nil {
				return err
			}
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
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

// ListDocuments returns every document in the store ordered by ID.
// Document keys encode the ID in decimal, so the scan order is
// lexicographic and the results are sorted afterwards.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, doc)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(a, b *core.Document) int { return cmp.Compare(a.Id, b.Id) })
	return results, nil
}

// GetChunks retrieves a document's chunks ordered by sequence number.
// Chunk keys encode the sequence in BigEndian, so iteration order is
// already sequence order.
func (r *DocumentRepository) GetChunks(ctx context.Context, docID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkScanKey(docID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	return results, err
}

// CollectionsOf returns the names of the collections a document is joined to.
func (r *DocumentRepository) CollectionsOf(ctx context.Context, docID core.ID) ([]string, error) {
	var names []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		names, err = membershipOf(tx, docID)
		return err
	}, false)
	return names, err
}

// FindByCrawlRoot returns the IDs of documents whose crawl root metadata
// equals rootURL and whose membership includes collection. The scan always
// goes through the collection's membership rows, never across the whole
// document space.
func (r *DocumentRepository) FindByCrawlRoot(ctx context.Context, rootURL, collection string) ([]core.ID, error) {
	if collection == "" {
		return nil, &core.ScopeViolationError{Op: "find documents by crawl root"}
	}

	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMemberScanKey(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var docID core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				docID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			doc, err := readDocument(tx, makeDocumentKey(docID))
			if err != nil {
				return err
			}
			if doc == nil {
				continue
			}
			if doc.Metadata[core.MetaCrawlRootURL] == rootURL {
				ids = append(ids, docID)
			}
		}
		return nil
	}, false)
	return ids, err
}

// CountDocuments returns the number of documents in the entire store.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// CountCollection returns the number of distinct documents joined to the
// collection.
func (r *DocumentRepository) CountCollection(ctx context.Context, name string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		exists, err := readCollection(tx, makeCollectionKey(name))
		if err != nil {
			return err
		}
		if exists == nil {
			return storage.ErrNotFound
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMemberScanKey(name)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// FindSimilar returns chunks ranked by similarity to the given vector.
func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, opts storage.SearchOptions) ([]*core.ChunkMatch, error) {
	var results []*core.ChunkMatch

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// When scoped to a collection, restrict to its membership set up
		// front instead of filtering every chunk's parent afterwards.
		var member map[core.ID]bool
		if opts.Collection != "" {
			member = make(map[core.ID]bool)
			memberOpts := badger.DefaultIteratorOptions
			memberOpts.Prefix = makeMemberScanKey(opts.Collection)
			iter := tx.NewIterator(memberOpts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				var docID core.ID
				err := iter.Item().Value(func(val []byte) error {
					var err error
					docID, err = storage.UnmarshalID(val)
					return err
				})
				if err != nil {
					iter.Close()
					return err
				}
				member[docID] = true
			}
			iter.Close()
		}

		// Parent documents are shared by many chunks, cache them per scan.
		docs := make(map[core.ID]*core.Document)
		lookupDoc := func(id core.ID) (*core.Document, error) {
			if doc, ok := docs[id]; ok {
				return doc, nil
			}
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return nil, err
			}
			docs[id] = doc
			return doc, nil
		}

		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(chunk.Vector) == 0 {
				continue
			}
			if member != nil && !member[chunk.DocumentId] {
				continue
			}

			similarity := dotProduct(vector, chunk.Vector)
			if similarity < opts.MinSimilarity {
				continue
			}

			doc, err := lookupDoc(chunk.DocumentId)
			if err != nil {
				return err
			}
			if doc == nil {
				continue
			}
			if !matchesFilter(doc, opts.Filter) {
				continue
			}

			results = append(results, &core.ChunkMatch{
				Document: doc,
				Chunk:    chunk,
				Score:    similarity,
			})
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.ChunkMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

// Helper methods

func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

func readCollection(tx *badger.Txn, key []byte) (*core.Collection, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var collection *core.Collection
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		collection, unmarshalErr = storage.UnmarshalCollection(val)
		return unmarshalErr
	})
	return collection, err
}

func writeChunks(tx *badger.Txn, docID core.ID, chunks []*core.Chunk) error {
	for _, chunk := range chunks {
		chunk.DocumentId = docID
		key := makeChunkKey(docID, chunk.Seq)
		if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
			return err
		}
	}
	return nil
}

func deleteChunks(tx *badger.Txn, docID core.ID) error {
	// Collect keys first; deleting while iterating invalidates the iterator.
	var keys [][]byte
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeChunkScanKey(docID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func membershipOf(tx *badger.Txn, docID core.ID) ([]string, error) {
	var names []string
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeMemberOfScanKey(docID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var name string
		err := iter.Item().Value(func(val []byte) error {
			name = string(val)
			return nil
		})
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func matchesFilter(doc *core.Document, filter map[string]string) bool {
	for k, v := range filter {
		if doc.Metadata[k] != v {
			return false
		}
	}
	return true
}
