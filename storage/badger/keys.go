package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/duograph/core"
)

// Key prefixes for different data types. Composite keys encode IDs in
// BigEndian so lexicographic iteration order matches numeric order.
const (
	documentPrefix   = "docrec:"
	documentIDSeq    = "docrecseq"
	chunkPrefix      = "chkrec:"
	collectionPrefix = "colrec:"
	memberPrefix     = "colmem:" // collection -> document
	memberOfPrefix   = "docmem:" // document -> collection (reverse)
	episodePrefix    = "eprec:"
	episodeIDSeq     = "eprecseq"
	episodeDocPrefix = "epdoc:" // provenance index: document -> episode
	episodeGrpPrefix = "epgrp:" // group index
	entityPrefix     = "entrec:"
	factPrefix       = "factrec:"
	factIDSeq        = "factrecseq"
	factGrpPrefix    = "factgrp:" // group index
	factEdgePrefix   = "factcur:" // edge key -> current fact id
	crawlPrefix      = "crawlrec:"
)

// sep separates variable-length string segments in composite keys. It
// cannot appear in collection names (enforced at creation).
const sep = 0x00

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", documentPrefix, id))
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix + docID + seq
func makeChunkKey(docID core.ID, seq int) []byte {
	buf := make([]byte, 0, len(chunkPrefix)+16)
	buf = append(buf, chunkPrefix...)
	buf = appendUint64(buf, uint64(docID))
	return appendUint64(buf, uint64(seq))
}

// makeChunkScanKey generates the prefix covering all chunks of a document.
func makeChunkScanKey(docID core.ID) []byte {
	buf := make([]byte, 0, len(chunkPrefix)+8)
	buf = append(buf, chunkPrefix...)
	return appendUint64(buf, uint64(docID))
}

// makeCollectionKey generates a key for a collection by name.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makeMemberKey generates a membership key joining a collection to a document.
// Format: prefix + collection + sep + docID
func makeMemberKey(collection string, docID core.ID) []byte {
	buf := make([]byte, 0, len(memberPrefix)+len(collection)+9)
	buf = append(buf, memberPrefix...)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	return appendUint64(buf, uint64(docID))
}

// makeMemberScanKey generates the prefix covering a collection's membership rows.
func makeMemberScanKey(collection string) []byte {
	buf := make([]byte, 0, len(memberPrefix)+len(collection)+1)
	buf = append(buf, memberPrefix...)
	buf = append(buf, collection...)
	return append(buf, sep)
}

// makeMemberOfKey generates the reverse membership key for cascade deletes.
// Format: prefix + docID + collection
func makeMemberOfKey(docID core.ID, collection string) []byte {
	buf := make([]byte, 0, len(memberOfPrefix)+8+len(collection))
	buf = append(buf, memberOfPrefix...)
	buf = appendUint64(buf, uint64(docID))
	return append(buf, collection...)
}

// makeMemberOfScanKey generates the prefix covering a document's membership rows.
func makeMemberOfScanKey(docID core.ID) []byte {
	buf := make([]byte, 0, len(memberOfPrefix)+8)
	buf = append(buf, memberOfPrefix...)
	return appendUint64(buf, uint64(docID))
}

// makeEpisodeKey generates a key for an episode by ID.
func makeEpisodeKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", episodePrefix, id))
}

// makeEpisodeDocKey generates a provenance index key.
// Format: prefix + docID + episodeID
func makeEpisodeDocKey(docID, episodeID core.ID) []byte {
	buf := make([]byte, 0, len(episodeDocPrefix)+16)
	buf = append(buf, episodeDocPrefix...)
	buf = appendUint64(buf, uint64(docID))
	return appendUint64(buf, uint64(episodeID))
}

// makeEpisodeDocScanKey generates the prefix covering a document's episodes.
func makeEpisodeDocScanKey(docID core.ID) []byte {
	buf := make([]byte, 0, len(episodeDocPrefix)+8)
	buf = append(buf, episodeDocPrefix...)
	return appendUint64(buf, uint64(docID))
}

// makeEpisodeGroupKey generates a group index key.
// Format: prefix + group + sep + episodeID
func makeEpisodeGroupKey(groupID string, episodeID core.ID) []byte {
	buf := make([]byte, 0, len(episodeGrpPrefix)+len(groupID)+9)
	buf = append(buf, episodeGrpPrefix...)
	buf = append(buf, groupID...)
	buf = append(buf, sep)
	return appendUint64(buf, uint64(episodeID))
}

// makeEpisodeGroupScanKey generates the prefix covering a group's episodes.
func makeEpisodeGroupScanKey(groupID string) []byte {
	buf := make([]byte, 0, len(episodeGrpPrefix)+len(groupID)+1)
	buf = append(buf, episodeGrpPrefix...)
	buf = append(buf, groupID...)
	return append(buf, sep)
}

// makeEntityKey generates a key for an entity by its content-derived ID.
func makeEntityKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", entityPrefix, id))
}

// makeFactKey generates a key for a fact by ID.
func makeFactKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", factPrefix, id))
}

// makeFactGroupKey generates a group index key.
// Format: prefix + group + sep + factID
func makeFactGroupKey(groupID string, factID core.ID) []byte {
	buf := make([]byte, 0, len(factGrpPrefix)+len(groupID)+9)
	buf = append(buf, factGrpPrefix...)
	buf = append(buf, groupID...)
	buf = append(buf, sep)
	return appendUint64(buf, uint64(factID))
}

// makeFactGroupScanKey generates the prefix covering a group's facts.
func makeFactGroupScanKey(groupID string) []byte {
	buf := make([]byte, 0, len(factGrpPrefix)+len(groupID)+1)
	buf = append(buf, factGrpPrefix...)
	buf = append(buf, groupID...)
	return append(buf, sep)
}

// makeFactEdgeKey generates the current-fact index key for a logical edge.
// Format: prefix + group + sep + relation + sep + sourceID + targetID
func makeFactEdgeKey(groupID, relation string, sourceID, targetID core.ID) []byte {
	buf := make([]byte, 0, len(factEdgePrefix)+len(groupID)+len(relation)+18)
	buf = append(buf, factEdgePrefix...)
	buf = append(buf, groupID...)
	buf = append(buf, sep)
	buf = append(buf, relation...)
	buf = append(buf, sep)
	buf = appendUint64(buf, uint64(sourceID))
	return appendUint64(buf, uint64(targetID))
}

// makeCrawlKey generates the composite key for a crawl session record.
// Format: prefix + collection + sep + rootURL. Both parts are always
// present; there is no key shape for a url without a collection.
func makeCrawlKey(rootURL, collection string) []byte {
	buf := make([]byte, 0, len(crawlPrefix)+len(collection)+len(rootURL)+1)
	buf = append(buf, crawlPrefix...)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	return append(buf, rootURL...)
}
