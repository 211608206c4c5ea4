package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
	"github.com/ariefcatur/go-bookstore-engine/internal/memstore"
)

const owner = "owner"

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(memstore.New())
	require.NoError(t, err)
	require.NoError(t, eng.SeedDesignatedOwner(context.Background(), owner))
	return eng
}

func opener(eng *engine.Engine) Opener {
	return func(context.Context) (*engine.Engine, func(), error) {
		return eng, func() {}, nil
	}
}

func run(t *testing.T, eng *engine.Engine, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(opener(eng))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(opener(nil))
	for _, name := range []string{"export", "import", "merge", "reset", "recover"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestRecoverExportImportRoundTrip(t *testing.T) {
	src := newEngine(t)
	ctx := context.Background()

	out, err := run(t, src, "recover", "--as", owner)
	require.NoError(t, err)
	assert.Contains(t, out, "owner is now admin")
	require.NoError(t, src.AddBook(ctx, owner, engine.BookInput{ID: "b1", Title: "Dune", Author: "Herbert", Price: 12}))
	require.NoError(t, src.Mint(ctx, owner, "alice", 40))

	path := filepath.Join(t.TempDir(), "store.yaml")
	_, err = run(t, src, "export", "--as", owner, "-o", path)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "title: Dune")

	dst := newEngine(t)
	_, err = run(t, dst, "recover", "--as", owner)
	require.NoError(t, err)
	out, err = run(t, dst, "import", path, "--as", owner)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 books")

	want, err := src.Export(ctx, owner)
	require.NoError(t, err)
	got, err := dst.Export(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, want.Books, got.Books)
	assert.Equal(t, want.Balances, got.Balances)
}

func TestMergeFromJSON(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.RecoverAdminAccess(ctx, owner))
	require.NoError(t, eng.AddBook(ctx, owner, engine.BookInput{ID: "b1", Title: "Old", Price: 1}))

	snap, err := eng.Export(ctx, owner)
	require.NoError(t, err)
	snap.Books = []bookstore.Book{{ID: "b2", Title: "New", Available: true}}
	path := filepath.Join(t.TempDir(), "draft.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, bookstore.EncodeSnapshot(f, snap, bookstore.FormatJSON))
	require.NoError(t, f.Close())

	_, err = run(t, eng, "import", "--merge", path, "--as", owner)
	require.NoError(t, err)

	books, err := eng.Books(ctx, owner)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "b1", books[0].ID)
	assert.Equal(t, "b2", books[1].ID)
}

func TestResetNeedsConfirmationAndAdmin(t *testing.T) {
	eng := newEngine(t)

	_, err := run(t, eng, "reset", "--as", owner)
	assert.ErrorContains(t, err, "--yes")

	_, err = run(t, eng, "reset", "--yes", "--as", "nobody")
	var de *bookstore.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, bookstore.CodeUnauthorized, de.Code)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, newEngine(t), "export", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}
