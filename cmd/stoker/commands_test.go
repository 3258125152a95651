package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokerbuild/stoker/internal/core/domain"
	"github.com/stokerbuild/stoker/internal/core/recipe"
	"github.com/stokerbuild/stoker/internal/shell/buildctx"
	"github.com/stokerbuild/stoker/internal/shell/store"
)

// =============================================================================
// Build Resolution Tests
// =============================================================================

func testRecipe(t *testing.T) *recipe.Recipe {
	t.Helper()
	r, err := recipe.Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", "main.py"]
`)
	require.NoError(t, err)
	return r
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveBuild_ExplicitReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b, err := domain.NewBuild("web-app", "sha256:r", "sha256:s")
	require.NoError(t, err)
	require.NoError(t, s.CreateBuild(ctx, b))

	got, err := resolveBuild(ctx, s, testRecipe(t), ".", b.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, b.ReferenceID, got.ReferenceID)
}

func TestResolveBuild_ExplicitReference_WrongRecipe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b, err := domain.NewBuild("other-app", "sha256:r", "sha256:s")
	require.NoError(t, err)
	require.NoError(t, s.CreateBuild(ctx, b))

	_, err = resolveBuild(ctx, s, testRecipe(t), ".", b.ReferenceID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other-app")
}

func TestResolveBuild_ByDigests_ResolvesAgainstBaseDir(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := testRecipe(t)

	// Source tree lives away from the working directory; the recipe's
	// relative source path must resolve against baseDir.
	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "main.py"), []byte("print('hi')\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "requirements.txt"), []byte("flask==2.0.1\n"), 0644))

	sourceDigest, err := buildctx.Digest(sourceDir)
	require.NoError(t, err)

	b, err := domain.NewBuild("web-app", recipe.Digest(*r), sourceDigest)
	require.NoError(t, err)
	require.NoError(t, b.Transition(domain.BuildRunning))
	require.NoError(t, b.Succeed("web-app:"+b.ReferenceID, "sha256:img"))
	require.NoError(t, s.CreateBuild(ctx, b))

	got, err := resolveBuild(ctx, s, r, sourceDir, "")
	require.NoError(t, err)
	assert.Equal(t, b.ReferenceID, got.ReferenceID)
}

func TestResolveBuild_ByDigests_NoSucceededBuild(t *testing.T) {
	s := newTestStore(t)

	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "main.py"), []byte("print('hi')\n"), 0644))

	_, err := resolveBuild(context.Background(), s, testRecipe(t), sourceDir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stoker build")
}
