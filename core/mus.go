// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Hand-written MUS serializers for the domain types. Field order is part of
// the on-disk format: append new fields, never reorder. Timestamps are
// stored as Unix microseconds.

package core

import (
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// IDMUS serializes an ID.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

// -- shared field helpers --

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func marshalStringMap(m map[string]string, bs []byte) (n int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	n = varint.Int.Marshal(len(keys), bs)
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

func unmarshalStringMap(bs []byte) (m map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	m = make(map[string]string, length)
	var k, v string
	var n1 int
	for i := 0; i < length; i++ {
		k, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

func sizeStringMap(m map[string]string) (size int) {
	size = varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]float32, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalIDs(ids []ID, bs []byte) (n int) {
	n = varint.Int.Marshal(len(ids), bs)
	for _, id := range ids {
		n += IDMUS.Marshal(id, bs[n:])
	}
	return n
}

func unmarshalIDs(bs []byte) (ids []ID, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	ids = make([]ID, length)
	var n1 int
	for i := 0; i < length; i++ {
		ids[i], n1, err = IDMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return ids, n, nil
}

func sizeIDs(ids []ID) (size int) {
	size = varint.Int.Size(len(ids))
	for _, id := range ids {
		size += IDMUS.Size(id)
	}
	return size
}

// DocumentMUS serializes a Document.
var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Title, bs[n:])
	n += ord.String.Marshal(d.Content, bs[n:])
	n += marshalStringMap(d.Metadata, bs[n:])
	n += marshalTime(d.InsertedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return d, n, err
	}
	if d.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Metadata, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.InsertedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	d.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	return d, n + n1, err
}

func (documentMUS) Size(d Document) int {
	return IDMUS.Size(d.Id) +
		ord.String.Size(d.Title) +
		ord.String.Size(d.Content) +
		sizeStringMap(d.Metadata) +
		sizeTime(d.InsertedAt) +
		sizeTime(d.UpdatedAt)
}

// ChunkMUS serializes a Chunk.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(c.DocumentId, bs)
	n += varint.Int.Marshal(c.Seq, bs[n:])
	n += varint.Int.Marshal(c.Start, bs[n:])
	n += varint.Int.Marshal(c.End, bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += marshalVector(c.Vector, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	if c.DocumentId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return c, n, err
	}
	if c.Seq, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Start, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.End, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	c.Vector, n1, err = unmarshalVector(bs[n:])
	return c, n + n1, err
}

func (chunkMUS) Size(c Chunk) int {
	return IDMUS.Size(c.DocumentId) +
		varint.Int.Size(c.Seq) +
		varint.Int.Size(c.Start) +
		varint.Int.Size(c.End) +
		ord.String.Size(c.Content) +
		sizeVector(c.Vector)
}

// CollectionMUS serializes a Collection, including its schema.
var CollectionMUS = collectionMUS{}

type collectionMUS struct{}

func (collectionMUS) Marshal(c Collection, bs []byte) (n int) {
	n = ord.String.Marshal(c.Name, bs)
	n += ord.Bool.Marshal(c.Schema.Strict, bs[n:])

	names := make([]string, 0, len(c.Schema.Fields))
	for name := range c.Schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	n += varint.Int.Marshal(len(names), bs[n:])
	for _, name := range names {
		spec := c.Schema.Fields[name]
		n += ord.String.Marshal(name, bs[n:])
		n += varint.Int.Marshal(int(spec.Kind), bs[n:])
		n += ord.Bool.Marshal(spec.Required, bs[n:])
	}

	n += marshalTime(c.InsertedAt, bs[n:])
	return n
}

func (collectionMUS) Unmarshal(bs []byte) (c Collection, n int, err error) {
	var n1 int
	if c.Name, n, err = ord.String.Unmarshal(bs); err != nil {
		return c, n, err
	}
	if c.Schema.Strict, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1

	var count int
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if count > 0 {
		c.Schema.Fields = make(map[string]FieldSpec, count)
	}
	for i := 0; i < count; i++ {
		var name string
		var kind int
		var spec FieldSpec
		if name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return c, n + n1, err
		}
		n += n1
		if kind, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
			return c, n + n1, err
		}
		n += n1
		if spec.Required, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
			return c, n + n1, err
		}
		n += n1
		spec.Kind = FieldKind(kind)
		c.Schema.Fields[name] = spec
	}

	c.InsertedAt, n1, err = unmarshalTime(bs[n:])
	return c, n + n1, err
}

func (collectionMUS) Size(c Collection) (size int) {
	size = ord.String.Size(c.Name) +
		ord.Bool.Size(c.Schema.Strict) +
		varint.Int.Size(len(c.Schema.Fields))
	for name, spec := range c.Schema.Fields {
		size += ord.String.Size(name) +
			varint.Int.Size(int(spec.Kind)) +
			ord.Bool.Size(spec.Required)
	}
	return size + sizeTime(c.InsertedAt)
}

// EpisodeMUS serializes an Episode.
var EpisodeMUS = episodeMUS{}

type episodeMUS struct{}

func (episodeMUS) Marshal(e Episode, bs []byte) (n int) {
	n = IDMUS.Marshal(e.Id, bs)
	n += ord.String.Marshal(e.Name, bs[n:])
	n += ord.String.Marshal(e.Content, bs[n:])
	n += ord.String.Marshal(e.GroupId, bs[n:])
	n += IDMUS.Marshal(e.DocumentId, bs[n:])
	n += ord.String.Marshal(e.Description, bs[n:])
	n += marshalTime(e.ReferenceTime, bs[n:])
	n += marshalTime(e.InsertedAt, bs[n:])
	return n
}

func (episodeMUS) Unmarshal(bs []byte) (e Episode, n int, err error) {
	var n1 int
	if e.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return e, n, err
	}
	if e.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.GroupId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.DocumentId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Description, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.ReferenceTime, n1, err = unmarshalTime(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	e.InsertedAt, n1, err = unmarshalTime(bs[n:])
	return e, n + n1, err
}

func (episodeMUS) Size(e Episode) int {
	return IDMUS.Size(e.Id) +
		ord.String.Size(e.Name) +
		ord.String.Size(e.Content) +
		ord.String.Size(e.GroupId) +
		IDMUS.Size(e.DocumentId) +
		ord.String.Size(e.Description) +
		sizeTime(e.ReferenceTime) +
		sizeTime(e.InsertedAt)
}

// EntityMUS serializes an Entity.
var EntityMUS = entityMUS{}

type entityMUS struct{}

func (entityMUS) Marshal(e Entity, bs []byte) (n int) {
	n = IDMUS.Marshal(e.Id, bs)
	n += ord.String.Marshal(e.Name, bs[n:])
	n += ord.String.Marshal(e.Type, bs[n:])
	n += ord.String.Marshal(e.GroupId, bs[n:])
	n += marshalIDs(e.Episodes, bs[n:])
	n += marshalTime(e.InsertedAt, bs[n:])
	n += marshalTime(e.UpdatedAt, bs[n:])
	return n
}

func (entityMUS) Unmarshal(bs []byte) (e Entity, n int, err error) {
	var n1 int
	if e.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return e, n, err
	}
	if e.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Type, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.GroupId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Episodes, n1, err = unmarshalIDs(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.InsertedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	e.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	return e, n + n1, err
}

func (entityMUS) Size(e Entity) int {
	return IDMUS.Size(e.Id) +
		ord.String.Size(e.Name) +
		ord.String.Size(e.Type) +
		ord.String.Size(e.GroupId) +
		sizeIDs(e.Episodes) +
		sizeTime(e.InsertedAt) +
		sizeTime(e.UpdatedAt)
}

// FactMUS serializes a Fact. The nullable ValidUntil is encoded as a
// presence flag followed by the timestamp.
var FactMUS = factMUS{}

type factMUS struct{}

func (factMUS) Marshal(f Fact, bs []byte) (n int) {
	n = IDMUS.Marshal(f.Id, bs)
	n += IDMUS.Marshal(f.SourceId, bs[n:])
	n += IDMUS.Marshal(f.TargetId, bs[n:])
	n += ord.String.Marshal(f.Relation, bs[n:])
	n += ord.String.Marshal(f.Statement, bs[n:])
	n += ord.String.Marshal(f.GroupId, bs[n:])
	n += marshalTime(f.ValidFrom, bs[n:])
	n += ord.Bool.Marshal(f.ValidUntil != nil, bs[n:])
	if f.ValidUntil != nil {
		n += marshalTime(*f.ValidUntil, bs[n:])
	}
	n += marshalIDs(f.Episodes, bs[n:])
	n += marshalTime(f.InsertedAt, bs[n:])
	return n
}

func (factMUS) Unmarshal(bs []byte) (f Fact, n int, err error) {
	var n1 int
	if f.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return f, n, err
	}
	if f.SourceId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	if f.TargetId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	if f.Relation, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	if f.Statement, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	if f.GroupId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	if f.ValidFrom, n1, err = unmarshalTime(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	var hasUntil bool
	if hasUntil, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	if hasUntil {
		var until time.Time
		if until, n1, err = unmarshalTime(bs[n:]); err != nil {
			return f, n + n1, err
		}
		n += n1
		f.ValidUntil = &until
	}
	if f.Episodes, n1, err = unmarshalIDs(bs[n:]); err != nil {
		return f, n + n1, err
	}
	n += n1
	f.InsertedAt, n1, err = unmarshalTime(bs[n:])
	return f, n + n1, err
}

func (factMUS) Size(f Fact) (size int) {
	size = IDMUS.Size(f.Id) +
		IDMUS.Size(f.SourceId) +
		IDMUS.Size(f.TargetId) +
		ord.String.Size(f.Relation) +
		ord.String.Size(f.Statement) +
		ord.String.Size(f.GroupId) +
		sizeTime(f.ValidFrom) +
		ord.Bool.Size(f.ValidUntil != nil)
	if f.ValidUntil != nil {
		size += sizeTime(*f.ValidUntil)
	}
	return size + sizeIDs(f.Episodes) + sizeTime(f.InsertedAt)
}

// CrawlSessionMUS serializes a CrawlSession.
var CrawlSessionMUS = crawlSessionMUS{}

type crawlSessionMUS struct{}

func (crawlSessionMUS) Marshal(s CrawlSession, bs []byte) (n int) {
	n = ord.String.Marshal(s.RootURL, bs)
	n += ord.String.Marshal(s.Collection, bs[n:])
	n += ord.String.Marshal(s.SessionId, bs[n:])
	n += varint.Int.Marshal(s.PageCount, bs[n:])
	n += varint.Int.Marshal(s.ChunkCount, bs[n:])
	n += marshalTime(s.Timestamp, bs[n:])
	return n
}

func (crawlSessionMUS) Unmarshal(bs []byte) (s CrawlSession, n int, err error) {
	var n1 int
	if s.RootURL, n, err = ord.String.Unmarshal(bs); err != nil {
		return s, n, err
	}
	if s.Collection, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.SessionId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.PageCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	s.Timestamp, n1, err = unmarshalTime(bs[n:])
	return s, n + n1, err
}

func (crawlSessionMUS) Size(s CrawlSession) int {
	return ord.String.Size(s.RootURL) +
		ord.String.Size(s.Collection) +
		ord.String.Size(s.SessionId) +
		varint.Int.Size(s.PageCount) +
		varint.Int.Size(s.ChunkCount) +
		sizeTime(s.Timestamp)
}
