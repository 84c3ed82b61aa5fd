package storage

import (
	"testing"
	"time"

	"github.com/poiesic/duograph/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &core.Document{
		Id:      42,
		Title:   "Getting Started",
		Content: "Some content with unicode: héllo wörld",
		Metadata: map[string]string{
			"domain":               "docs",
			core.MetaCrawlRootURL:  "https://example.com",
			core.MetaCrawlSessionID: "abc-123",
		},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	got, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestFactRoundTripNullableValidUntil(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	until := now.Add(time.Hour)

	current := &core.Fact{
		Id:         7,
		SourceId:   1,
		TargetId:   2,
		Relation:   "LOCATED_IN",
		Statement:  "The Eiffel Tower is located in Paris.",
		GroupId:    "landmarks",
		ValidFrom:  now,
		Episodes:   []core.ID{10, 11},
		InsertedAt: now,
	}
	got, err := UnmarshalFact(MarshalFact(current))
	require.NoError(t, err)
	assert.Nil(t, got.ValidUntil)
	assert.Equal(t, current, got)

	closed := *current
	closed.ValidUntil = &until
	got, err = UnmarshalFact(MarshalFact(&closed))
	require.NoError(t, err)
	require.NotNil(t, got.ValidUntil)
	assert.True(t, got.ValidUntil.Equal(until))
}

func TestCollectionRoundTripWithSchema(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	col := &core.Collection{
		Name: "product-docs",
		Schema: core.Schema{
			Fields: map[string]core.FieldSpec{
				"domain":   {Kind: core.FieldString, Required: true},
				"priority": {Kind: core.FieldInt},
			},
			Strict: true,
		},
		InsertedAt: now,
	}

	got, err := UnmarshalCollection(MarshalCollection(col))
	require.NoError(t, err)
	assert.Equal(t, col, got)
}

func TestUnmarshalTruncatedData(t *testing.T) {
	data := MarshalDocument(&core.Document{Id: 1, Title: "t", Content: "c"})
	_, err := UnmarshalDocument(data[:len(data)/2])
	assert.Error(t, err)
}
