package duograph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/duograph/ai/mock"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	t.Run("create new engine", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		engine, err := NewEngine(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, engine)
		defer engine.Close()

		// Verify components are initialized
		assert.NotNil(t, engine.DocumentRepository())
		assert.NotNil(t, engine.GraphRepository())
		assert.NotNil(t, engine.CrawlRepository())
		assert.NotNil(t, engine.VectorStore())
		assert.NotNil(t, engine.GraphStore())
		assert.NotNil(t, engine.Tracker())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create an engine at a file path instead of a directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		engine, err := NewEngine(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, engine)
	})
}

func TestEngine_Close(t *testing.T) {
	engine, err := NewEngine("", WithInMemory())
	require.NoError(t, err)
	require.NotNil(t, engine)

	err = engine.Close()
	assert.NoError(t, err)
}

func TestEngine_FactoryMethods(t *testing.T) {
	engine, err := NewEngine("", WithInMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer engine.Close()

	t.Run("can create ingestion mediator", func(t *testing.T) {
		mediator, err := engine.NewMediator()
		require.NoError(t, err)
		require.NotNil(t, mediator)
		mediator.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := engine.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create reconciler", func(t *testing.T) {
		reconciler, err := engine.NewReconciler(nil, os.Stderr)
		require.NoError(t, err)
		require.NotNil(t, reconciler)
	})
}

func TestEngine_EndToEnd(t *testing.T) {
	engine, err := NewEngine("", WithInMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()

	_, err = engine.DocumentRepository().CreateCollection(ctx, &core.Collection{Name: "notes"})
	require.NoError(t, err)

	mediator, err := engine.NewMediator()
	require.NoError(t, err)
	defer mediator.Release()

	result, err := mediator.Ingest(ctx, "Gophers build concurrent systems.", "notes", "gophers", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Document)
	require.Greater(t, result.ChunkCount, 0)

	searcher, err := engine.NewSearcher()
	require.NoError(t, err)

	found, err := searcher.Search(ctx, "concurrent systems", search.Options{Collection: "notes"})
	require.NoError(t, err)
	require.NotEmpty(t, found.Chunks)
}
