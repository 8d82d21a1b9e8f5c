// Command scan-test runs one reconciliation pass over a directory and prints
// what it found. Databases go to a temporary directory unless -data is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/events"
	"github.com/shelfsync/shelfsync-server/internal/fingerprint"
	"github.com/shelfsync/shelfsync-server/internal/formats"
	"github.com/shelfsync/shelfsync-server/internal/library"
	"github.com/shelfsync/shelfsync-server/internal/logger"
	"github.com/shelfsync/shelfsync-server/internal/scanner"
	"github.com/shelfsync/shelfsync-server/internal/store"
	"github.com/shelfsync/shelfsync-server/internal/store/sqlite"
)

func main() {
	dataDir := flag.String("data", "", "Directory for the databases (default: a temporary directory)")
	locale := flag.String("help-language", "en", "Locale of the built-in help book")
	verbose := flag.Bool("v", false, "Print progress")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: scan-test [-data dir] [-v] <library-path>...")
		os.Exit(1)
	}
	if err := run(*dataDir, *locale, *verbose, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
}

func run(dataDir, locale string, verbose bool, roots []string) error {
	log := logger.New(logger.Config{Writer: os.Stderr, Format: logger.FormatPretty, Level: logger.ParseLevel("info")})

	if dataDir == "" {
		tmp, err := os.MkdirTemp("", "shelfsync-scan-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		dataDir = tmp
	}
	for i, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return err
		}
		roots[i] = abs
	}

	books, err := sqlite.Open(filepath.Join(dataDir, "books.db"), log.Component("store"))
	if err != nil {
		return err
	}
	defer books.Close()

	fps, err := store.New(filepath.Join(dataDir, "fingerprints"), log.Component("fingerprints"))
	if err != nil {
		return err
	}
	defer fps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cache := fingerprint.New(fps, log.Component("fingerprints"))
	if err := cache.Load(ctx); err != nil {
		return err
	}

	opts := scanner.Options{Roots: roots, HelpLocale: locale}
	if verbose {
		opts.OnProgress = func(p *scanner.Progress) {
			fmt.Printf("[%s] %d/%d - %s\n", p.Phase, p.Current, p.Total, p.CurrentItem)
		}
	}
	engine := scanner.NewEngine(books, cache, formats.Default(), log.Component("scanner"), opts)
	lib := library.New(books, cache, engine, events.New(log.Component("events")), log.Component("library"))
	defer lib.Close()

	result, err := engine.Run(ctx, lib)
	if err != nil {
		return err
	}
	if err := cache.Save(ctx); err != nil {
		return err
	}

	fmt.Printf("\n=== Scan Complete ===\n")
	fmt.Printf("Duration: %s\n", result.Duration())
	fmt.Printf("Files: %d\n", result.Files)
	fmt.Printf("New: %d (archive entries: %d)\n", result.New, result.ArchiveEntries)
	fmt.Printf("Reread: %d\n", result.Reread)
	fmt.Printf("Reused: %d\n", result.Reused)
	fmt.Printf("Orphaned: %d\n", result.Orphaned)
	fmt.Printf("Failed: %d\n", result.Failed)
	fmt.Printf("Indexed books: %d\n", lib.Size())
	return nil
}
