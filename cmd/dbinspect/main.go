// Command dbinspect prints a summary of the shelfsync databases, or dumps
// them as JSON with -json.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/shelfsync/shelfsync-server/internal/domain"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/store"
	"github.com/shelfsync/shelfsync-server/internal/store/sqlite"
)

type dump struct {
	Books        []*domain.Book              `json:"books"`
	Orphaned     []*domain.Book              `json:"orphaned"`
	Recent       []string                    `json:"recent"`
	Favorites    []string                    `json:"favorites"`
	Bookmarks    []*domain.Bookmark          `json:"bookmarks"`
	Fingerprints map[string]store.FileRecord `json:"fingerprints"`
}

func main() {
	home, _ := os.UserHomeDir()
	dataDir := flag.String("data", filepath.Join(home, ".shelfsync"), "Metadata directory of the daemon")
	asJSON := flag.Bool("json", false, "Dump every record as JSON")
	flag.Parse()

	if err := run(*dataDir, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "dbinspect: %v\n", err)
		os.Exit(1)
	}
}

func run(dataDir string, asJSON bool) error {
	ctx := context.Background()
	log := logger.Discard()

	books, err := sqlite.Open(filepath.Join(dataDir, "books.db"), log.Logger)
	if err != nil {
		return fmt.Errorf("open books: %w", err)
	}
	defer books.Close()

	fps, err := store.New(filepath.Join(dataDir, "fingerprints"), log.Logger)
	if err != nil {
		return fmt.Errorf("open fingerprints: %w", err)
	}
	defer fps.Close()

	var d dump
	existing, err := books.LoadBooks(ctx, true)
	if err != nil {
		return err
	}
	orphaned, err := books.LoadBooks(ctx, false)
	if err != nil {
		return err
	}
	d.Books, d.Orphaned = sorted(existing), sorted(orphaned)
	if d.Recent, err = books.LoadRecentBookIDs(ctx); err != nil {
		return err
	}
	if d.Favorites, err = books.LoadFavoriteIDs(ctx); err != nil {
		return err
	}
	if d.Bookmarks, err = books.LoadAllVisibleBookmarks(ctx); err != nil {
		return err
	}
	if d.Fingerprints, err = fps.LoadFingerprints(ctx); err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Println("=== Database Inspection ===")
	fmt.Printf("Books:        %d existing, %d orphaned\n", len(d.Books), len(d.Orphaned))
	fmt.Printf("Recent:       %d\n", len(d.Recent))
	fmt.Printf("Favorites:    %d\n", len(d.Favorites))
	fmt.Printf("Bookmarks:    %d visible\n", len(d.Bookmarks))
	fmt.Printf("Fingerprints: %d files\n", len(d.Fingerprints))
	fmt.Println()

	for i, b := range d.Books {
		if i == 10 {
			fmt.Printf("... and %d more\n", len(d.Books)-i)
			break
		}
		fmt.Printf("%s  %s\n    %s\n", b.ID, b.Title, b.File.Identity())
	}
	return nil
}

func sorted(m map[string]*domain.Book) []*domain.Book {
	out := make([]*domain.Book, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *domain.Book) int { return strings.Compare(a.File.Identity(), b.File.Identity()) })
	return out
}
