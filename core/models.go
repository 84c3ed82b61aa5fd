package core

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Metadata keys the crawler attaches to documents it produces. The crawl
// session protocol keys lookups and deletions on MetaCrawlRootURL together
// with the collection name, never the URL alone.
const (
	MetaCrawlRootURL   = "crawl_root_url"
	MetaCrawlSessionID = "crawl_session_id"
	MetaCrawlDepth     = "crawl_depth"
)

// Document is one ingested unit of content, regardless of where it came
// from (raw text, file, directory entry, crawled page). It is owned by the
// vector store; the graph store references it through episode provenance.
type Document struct {
	Id         ID
	Title      string
	Content    string
	Metadata   map[string]string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// IsCrawled reports whether the document originated from a web crawl.
func (d *Document) IsCrawled() bool {
	return d.Metadata[MetaCrawlRootURL] != ""
}

// Provenance renders the free-text episode description for this document:
// its identity plus its custom (non-crawl) metadata in key order.
func (d *Document) Provenance() string {
	var b strings.Builder
	fmt.Fprintf(&b, "document %d: %s", d.Id, d.Title)

	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		if k == MetaCrawlRootURL || k == MetaCrawlSessionID || k == MetaCrawlDepth {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "; %s=%s", k, d.Metadata[k])
	}
	if d.IsCrawled() {
		fmt.Fprintf(&b, "; crawled from %s", d.Metadata[MetaCrawlRootURL])
	}
	return b.String()
}

// Chunk is a contiguous slice of a document's content plus its embedding
// vector. Chunks are ordered by Seq and never shared across documents.
type Chunk struct {
	DocumentId ID
	Seq        int
	Start      int // byte offset of the slice within the document content
	End        int
	Content    string
	Vector     []float32
}

// Collection is a named, independent namespace. Documents join collections
// through an explicit membership relation; membership is never inferred
// from metadata.
type Collection struct {
	Name       string
	Schema     Schema
	InsertedAt time.Time
}

// Episode is the graph-store counterpart to a document, or to one window of
// it when the content exceeds the graph ingestion size budget. GroupId
// equals the owning collection's name; DocumentId is the provenance
// back-reference used for deletion and provenance queries.
type Episode struct {
	Id            ID
	Name          string // doc_<id>_part<i>of<n> for windowed content
	Content       string
	GroupId       string
	DocumentId    ID
	Description   string // free-text provenance: source title plus custom metadata
	ReferenceTime time.Time
	InsertedAt    time.Time
}

// Entity is a named thing extracted from episode content. Entities
// aggregate across episodes: the same (type, name) tuple within a group is
// reinforced by every episode that mentions it.
type Entity struct {
	Id         ID
	Name       string
	Type       string
	GroupId    string
	Episodes   []ID // episodes that mention this entity
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Tuple returns a string representation of the entity as "(GroupId,Type,Name)".
// This is used for generating deterministic IDs.
func (e *Entity) Tuple() string {
	return "(" + e.GroupId + "," + e.Type + "," + e.Name + ")"
}

// Fact is an extracted relationship between two entities, carrying a
// validity interval and the episodes that support it. Facts are superseded,
// not overwritten: an updated fact closes the old edge's validity interval
// rather than deleting it.
type Fact struct {
	Id         ID
	SourceId   ID // source entity
	TargetId   ID // target entity
	Relation   string
	Statement  string // the fact in plain language
	GroupId    string
	ValidFrom  time.Time
	ValidUntil *time.Time // nil means still current
	Episodes   []ID       // provenance: episodes that assert this fact
	InsertedAt time.Time
}

// Current reports whether the fact's validity interval is still open.
func (f *Fact) Current() bool {
	return f.ValidUntil == nil
}

// ValidAt reports whether the fact was considered true at the given time.
func (f *Fact) ValidAt(t time.Time) bool {
	if t.Before(f.ValidFrom) {
		return false
	}
	return f.ValidUntil == nil || t.Before(*f.ValidUntil)
}

// EdgeKey identifies the logical edge a fact asserts. Two facts with the
// same edge key within a group supersede one another.
func (f *Fact) EdgeKey() string {
	return fmt.Sprintf("%s:%d:%s:%d", f.GroupId, f.SourceId, f.Relation, f.TargetId)
}

// CrawlSession records the most recent crawl for a (root URL, collection)
// pair. It is keyed by the composite pair and never aggregates across
// collections.
type CrawlSession struct {
	RootURL    string
	Collection string
	SessionId  string
	PageCount  int
	ChunkCount int
	Timestamp  time.Time
}

// ChunkMatch is a chunk returned from vector similarity search together
// with its parent document and relevance score.
type ChunkMatch struct {
	Document *Document
	Chunk    *Chunk
	Score    float32
}

// FactResult is a fact returned from a graph query together with the names
// of the entities it connects.
type FactResult struct {
	Fact       *Fact
	SourceName string
	TargetName string
}
