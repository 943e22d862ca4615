// Command stock-ingest applies warehouse stock feeds to the product catalog.
// Feeds are gzip-compressed CSV files of "sku,delta" lines. Files are parsed
// concurrently, deltas are aggregated per SKU, and each aggregate is applied
// through a version-conditional update so the ingest never races the API
// servers into negative stock.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/product"
	"github.com/valyx/checkout/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxRetries    = 5
)

// feedResult holds aggregated stock deltas parsed from a single feed file.
type feedResult struct {
	deltas map[string]int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing stock feed *.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("stock ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("stock ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz feed files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// Pass 1: load catalog SKUs into a bloom filter so unknown SKUs in the
	// feeds are dropped without a database roundtrip per line.
	slog.Info("pass 1: loading catalog filter")

	catalog, err := buildCatalogFilter(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "build catalog filter")
	}

	// Pass 2: parse all feed files concurrently.
	slog.Info("pass 2: parsing feeds", slog.Int("files", len(files)))

	deltas, err := parseFeeds(ctx, files, catalog)
	if err != nil {
		return errors.Wrap(err, "parse feeds")
	}

	slog.Info("feeds parsed", slog.Int("skus", len(deltas)))

	if len(deltas) == 0 {
		slog.Info("no stock changes to apply")
		return nil
	}

	// Pass 3: apply the aggregated deltas one SKU at a time.
	return applyDeltas(ctx, repository.NewProductRepository(pool), deltas)
}

// buildCatalogFilter streams every product id into a bloom filter.
func buildCatalogFilter(ctx context.Context, pool *pgxpool.Pool) (*bloom.BloomFilter, error) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	rows, err := pool.Query(ctx, `SELECT id FROM products`)
	if err != nil {
		return nil, errors.Wrap(err, "query product ids")
	}
	defer rows.Close()

	var count uint64
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan product id")
		}
		filter.AddString(id)
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate product ids")
	}

	slog.Info("catalog filter built", slog.Uint64("products", count))
	return filter, nil
}

// parseFeeds reads every feed file concurrently and merges per-file deltas.
func parseFeeds(ctx context.Context, files []string, catalog *bloom.BloomFilter) (map[string]int, error) {
	results := make([]feedResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseFeedFile(ctx, i, f, catalog, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]int)
	for _, r := range results {
		for sku, delta := range r.deltas {
			merged[sku] += delta
		}
	}
	return merged, nil
}

func parseFeedFile(
	ctx context.Context,
	idx int,
	path string,
	catalog *bloom.BloomFilter,
	results []feedResult,
) func() error {
	return func() error {
		deltas := make(map[string]int)
		var count, skipped uint64

		if err := streamGzFile(ctx, path, func(line string) error {
			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.Int("file", idx+1),
					slog.Uint64("lines", count),
				)
			}

			sku, delta, err := parseFeedLine(line)
			if err != nil {
				return errors.Wrapf(err, "line %d", count)
			}
			if !catalog.TestString(sku) {
				skipped++
				return nil
			}
			deltas[sku] += delta
			return nil
		}); err != nil {
			return errors.Wrapf(err, "parse feed %s", filepath.Base(path))
		}

		slog.Info("feed parsed",
			slog.Int("file", idx+1),
			slog.Uint64("lines", count),
			slog.Uint64("unknown_skus", skipped),
			slog.Int("skus", len(deltas)),
		)

		results[idx] = feedResult{deltas: deltas}
		return nil
	}
}

// parseFeedLine splits a "sku,delta" line. Blank lines are skipped by
// returning a zero delta for an empty SKU upstream.
func parseFeedLine(line string) (string, int, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", 0, nil
	}

	sku, rawDelta, ok := strings.Cut(line, ",")
	if !ok {
		return "", 0, errors.Errorf("malformed line %q", line)
	}

	delta, err := strconv.Atoi(strings.TrimSpace(rawDelta))
	if err != nil {
		return "", 0, errors.Wrapf(err, "parse delta %q", rawDelta)
	}
	return strings.TrimSpace(sku), delta, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// applyDeltas applies each aggregated delta through a version-conditional
// update, retrying on conflicts with concurrent purchases.
func applyDeltas(ctx context.Context, inv inventory.Accessor, deltas map[string]int) error {
	slog.Info("applying stock deltas", slog.Int("skus", len(deltas)))

	var applied, missing, rejected int
	for sku, delta := range deltas {
		if delta == 0 || sku == "" {
			continue
		}

		switch err := applyDelta(ctx, inv, sku, delta); {
		case err == nil:
			applied++
		case errors.Is(err, product.ErrNotFound):
			// Bloom filter false positive or product deleted mid-run.
			missing++
		case errors.Is(err, inventory.ErrConflict):
			// Retries exhausted or the delta would drive stock negative.
			rejected++
			slog.Warn("stock delta rejected", slog.String("sku", sku), slog.Int("delta", delta))
		default:
			return errors.Wrapf(err, "apply delta for %s", sku)
		}

		if applied%10_000 == 0 && applied > 0 {
			slog.Info("apply progress", slog.Int("applied", applied))
		}
	}

	slog.Info("stock deltas applied",
		slog.Int("applied", applied),
		slog.Int("missing", missing),
		slog.Int("rejected", rejected),
	)
	return nil
}

func applyDelta(ctx context.Context, inv inventory.Accessor, sku string, delta int) error {
	var err error
	for range maxRetries {
		var p *product.Product
		if p, err = inv.GetProduct(ctx, sku); err != nil {
			return err
		}
		if delta < 0 && p.Quantity+delta < 0 {
			return inventory.ErrConflict
		}

		err = inv.AdjustStock(ctx, sku, delta, p.Version)
		if !inventory.IsRetryable(err) {
			return err
		}
	}
	return err
}
