package scanner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustWrite(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalker_Walk_EmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	files := NewWalker(testLogger()).Collect(context.Background(), tmpDir)

	if len(files) != 0 {
		t.Errorf("expected 0 results, got %d", len(files))
	}
}

func TestWalker_Walk_SkipsHiddenFiles(t *testing.T) {
	tmpDir := t.TempDir()
	mustWrite(t, filepath.Join(tmpDir, "book.epub"), "x")
	mustWrite(t, filepath.Join(tmpDir, ".hidden.epub"), "x")
	mustWrite(t, filepath.Join(tmpDir, ".cache", "inner.epub"), "x")

	files := NewWalker(testLogger()).Collect(context.Background(), tmpDir)

	want := []string{filepath.Join(tmpDir, "book.epub")}
	if !slices.Equal(files, want) {
		t.Errorf("got %v, want %v", files, want)
	}
}

func TestWalker_Walk_BreadthFirst(t *testing.T) {
	tmpDir := t.TempDir()
	deep := filepath.Join(tmpDir, "a", "b", "deep.txt")
	mid := filepath.Join(tmpDir, "a", "mid.txt")
	top := filepath.Join(tmpDir, "top.txt")
	mustWrite(t, deep, "x")
	mustWrite(t, mid, "x")
	mustWrite(t, top, "x")

	files := NewWalker(testLogger()).Collect(context.Background(), tmpDir)

	want := []string{top, mid, deep}
	if !slices.Equal(files, want) {
		t.Errorf("got %v, want %v", files, want)
	}
}

func TestWalker_Walk_VisitsDirectoryOnce(t *testing.T) {
	tmpDir := t.TempDir()
	books := filepath.Join(tmpDir, "books")
	mustWrite(t, filepath.Join(books, "one.fb2"), "x")

	if err := os.Symlink(books, filepath.Join(tmpDir, "alias")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	// The root is listed twice and is also reachable through the symlink.
	files := NewWalker(testLogger()).Collect(context.Background(), tmpDir, books)

	if len(files) != 1 {
		t.Fatalf("expected one file, got %v", files)
	}
}

func TestWalker_Walk_ReportsRoot(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	mustWrite(t, filepath.Join(first, "x", "a.txt"), "x")
	mustWrite(t, filepath.Join(second, "b.txt"), "x")

	roots := map[string]string{}
	for r := range NewWalker(testLogger()).Walk(context.Background(), first, second) {
		roots[filepath.Base(r.Path)] = r.Root
	}

	if roots["a.txt"] != first || roots["b.txt"] != second {
		t.Errorf("unexpected roots: %v", roots)
	}
}

func TestWalker_Walk_MissingRoot(t *testing.T) {
	files := NewWalker(testLogger()).Collect(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if len(files) != 0 {
		t.Errorf("expected no files, got %v", files)
	}
}

func TestWalker_Walk_ContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	for i := range 50 {
		mustWrite(t, filepath.Join(tmpDir, "f"+string(rune('a'+i%26))+string(rune('a'+i/26))+".txt"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	for range NewWalker(testLogger()).Walk(ctx, tmpDir) {
		count++
	}
	if count == 50 {
		t.Error("expected the walk to stop early after cancellation")
	}
}
