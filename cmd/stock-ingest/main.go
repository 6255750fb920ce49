// Command stock-ingest applies gzipped supplier stock feeds to the product
// table. Each feed line is "product_id,quantity"; feeds are parsed
// concurrently and merged in filename order, so a later feed overrides an
// earlier one for the same product.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/oolio-checkout/internal/storage/postgres"
)

const updateStockSQL = `UPDATE products SET stock = $2 WHERE id = $1`

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing stockfeed*.gz files")
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
	files, err := filepath.Glob(filepath.Join(dataDir, "stockfeed*.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no stockfeed*.gz files in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("parsing feeds", slog.Int("files", len(files)))

	levels, err := parseFeeds(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse feeds")
	}

	slog.Info("merged stock levels", slog.Int("products", len(levels)))

	if len(levels) == 0 {
		slog.Info("nothing to apply")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return applyLevels(ctx, pool, levels)
}

// parseFeeds reads all feed files concurrently, then merges them in
// filename order.
func parseFeeds(ctx context.Context, files []string) (map[int64]int, error) {
	perFile := make([]map[int64]int, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseFeedFile(ctx, i, f, perFile))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[int64]int)
	for _, levels := range perFile {
		for id, qty := range levels {
			merged[id] = qty
		}
	}

	return merged, nil
}

func parseFeedFile(ctx context.Context, idx int, path string, results []map[int64]int) func() error {
	return func() error {
		levels := make(map[int64]int)
		var lines, skipped int

		if err := streamGzFile(ctx, path, func(line string) {
			lines++
			id, qty, ok := parseLine(line)
			if !ok {
				skipped++
				return
			}
			levels[id] = qty
		}); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}

		slog.Info("feed parsed",
			slog.String("file", filepath.Base(path)),
			slog.Int("lines", lines),
			slog.Int("skipped", skipped),
			slog.Int("products", len(levels)),
		)

		results[idx] = levels
		return nil
	}
}

func parseLine(line string) (id int64, qty int, ok bool) {
	idStr, qtyStr, found := strings.Cut(strings.TrimSpace(line), ",")
	if !found {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	qty, err = strconv.Atoi(qtyStr)
	if err != nil || qty < 0 {
		return 0, 0, false
	}
	return id, qty, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
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
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

func applyLevels(ctx context.Context, pool *pgxpool.Pool, levels map[int64]int) error {
	slog.Info("applying stock levels", slog.Int("count", len(levels)))

	ids := make([]int64, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var applied, unknown int
	for _, id := range ids {
		tag, err := pool.Exec(ctx, updateStockSQL, id, levels[id])
		if err != nil {
			return errors.Wrapf(err, "update stock for product %d", id)
		}
		if tag.RowsAffected() == 0 {
			unknown++
			continue
		}
		applied++
	}

	slog.Info("stock levels applied", slog.Int("applied", applied), slog.Int("unknown_products", unknown))

	return nil
}
