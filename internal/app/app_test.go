package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docresolve/internal/config"
	"github.com/dgallion1/docresolve/internal/convert"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/markup"
)

func testConfig(root string) config.Config {
	return config.Config{
		ContentRoot:       root,
		Loader:            "fs",
		CacheBackend:      "memory",
		CacheSize:         16,
		MaxReferenceDepth: 5,
		MaxNesting:        10,
		RequestTimeout:    5 * time.Second,
		LogLevel:          "info",
	}
}

func contentRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Common", "Content Blocks")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LetterHeader.txt"), []byte("Smith & Co"), 0o644))
	return root
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuild_FSWithMemoryCache(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(contentRoot(t)), discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	require.NotNil(t, rt.FS)
	require.NotNil(t, rt.Cache)

	doc := &doctree.Document{Body: markup.Tokenize("{{dc-letterheader}} Dear client")}
	rep, err := rt.Engine.Convert(context.Background(), doc, convert.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Smith & Co\n Dear client", doctree.PlainText(rep.Tree))
	assert.Equal(t, int64(1), rt.Cache.Stats().Loads)
	assert.Equal(t, 5, rt.Engine.Limits().MaxDepth)
}

func TestBuild_NoCache(t *testing.T) {
	cfg := testConfig(contentRoot(t))
	cfg.CacheBackend = "none"
	rt, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)
	assert.Nil(t, rt.Cache)
	assert.NoError(t, rt.Close())
}

func TestBuild_Errors(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))
	_, err := Build(context.Background(), cfg, discard())
	assert.Error(t, err)

	cfg = testConfig(contentRoot(t))
	cfg.Loader = "ftp"
	_, err = Build(context.Background(), cfg, discard())
	assert.ErrorContains(t, err, "unknown loader")

	cfg = testConfig(contentRoot(t))
	cfg.CacheBackend = "tape"
	_, err = Build(context.Background(), cfg, discard())
	assert.ErrorContains(t, err, "unknown cache backend")

	cfg = testConfig(contentRoot(t))
	cfg.ContentBlockMap = filepath.Join(t.TempDir(), "nope.yaml")
	_, err = Build(context.Background(), cfg, discard())
	assert.Error(t, err)
}

func TestWatch_InvalidatesChangedBlocks(t *testing.T) {
	root := contentRoot(t)
	cfg := testConfig(root)
	cfg.WatchContent = true
	rt, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	doc := &doctree.Document{Body: markup.Tokenize("{{dc-letterheader}}")}
	_, err = rt.Engine.Convert(context.Background(), doc, convert.Options{})
	require.NoError(t, err)

	path := filepath.Join(root, "Common", "Content Blocks", "LetterHeader.txt")
	require.Eventually(t, func() bool {
		// Rewrite until the watcher has picked the change up.
		_ = os.WriteFile(path, []byte("Jones LLP"), 0o644)
		return rt.Cache.Stats().Invalidations > 0
	}, 3*time.Second, 50*time.Millisecond)

	rep, err := rt.Engine.Convert(context.Background(), doc, convert.Options{})
	require.NoError(t, err)
	assert.Contains(t, doctree.PlainText(rep.Tree), "Jones LLP")
}

func TestWatch_DisabledReturns(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(contentRoot(t)), discard())
	require.NoError(t, err)
	assert.NoError(t, rt.Watch(context.Background()))
}

func TestNewLogger_File(t *testing.T) {
	cfg := testConfig("")
	cfg.LogLevel = "warn"
	cfg.LogFile = filepath.Join(t.TempDir(), "docresolve.log")

	var buf bytes.Buffer
	log, closer := NewLogger(cfg, &buf)
	log.Info("dropped")
	log.Warn("kept", "k", "v")
	require.NoError(t, closer.Close())

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"k":"v"`)
}
