package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	bloomFPR      = 0.001
	minBloomSize  = 1024
	progressEvery = 1_000_000
)

// fileCoupons holds the records of one file and a bloom filter of their codes.
type fileCoupons struct {
	path    string
	records  []coupon.Draft
	filter   *bloom.BloomFilter
	suspects map[string]struct{}
	skipped  int
}

// parseLine decodes "CODE,PCT,VALID_UNTIL,MAX_USES" and validates it as a
// coupon draft.
func parseLine(s string, now time.Time) (coupon.Draft, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return coupon.Draft{}, errors.Errorf("want 4 fields, got %d", len(parts))
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return coupon.Draft{}, errors.Wrap(err, "discount percent")
	}
	until, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[2]))
	if err != nil {
		return coupon.Draft{}, errors.Wrap(err, "valid until")
	}
	maxUses, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return coupon.Draft{}, errors.Wrap(err, "max uses")
	}
	d := coupon.Draft{
		Code:            coupon.NormalizeCode(parts[0]),
		DiscountPercent: pct,
		ValidUntil:      until,
		MaxUses:         maxUses,
	}
	if err := d.Validate(now); err != nil {
		return coupon.Draft{}, err
	}
	return d, nil
}

// parseFiles reads every file concurrently. Results keep the files order.
func parseFiles(ctx context.Context, files []string, now time.Time) ([]*fileCoupons, error) {
	out := make([]*fileCoupons, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			fc, err := parseFile(ctx, path, now)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			out[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseFile(ctx context.Context, path string, now time.Time) (*fileCoupons, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	fc, err := readCoupons(ctx, gz, now)
	if err != nil {
		return nil, err
	}
	fc.path = path

	slog.Info("pass 1 complete",
		slog.String("file", path),
		slog.Int("coupons", len(fc.records)),
		slog.Int("skipped", fc.skipped),
	)
	return fc, nil
}

// readCoupons parses decompressed coupon lines. Blank lines and lines
// starting with '#' are ignored; malformed lines are logged and skipped.
// Codes repeated inside the file are recorded as suspects.
func readCoupons(ctx context.Context, r io.Reader, now time.Time) (*fileCoupons, error) {
	var (
		lines   []string
		scanner = bufio.NewScanner(r)
	)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines = append(lines, scanner.Text())
		if len(lines)%progressEvery == 0 {
			slog.Info("pass 1 progress", slog.Int("lines", len(lines)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}

	fc := &fileCoupons{
		filter:   bloom.NewWithEstimates(uint(max(len(lines), minBloomSize)), bloomFPR),
		suspects: make(map[string]struct{}),
	}
	for i, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		d, err := parseLine(text, now)
		if err != nil {
			slog.Warn("skipping line", slog.Int("line", i+1), slog.String("error", err.Error()))
			fc.skipped++
			continue
		}
		if fc.filter.TestAndAddString(d.Code) {
			fc.suspects[d.Code] = struct{}{}
		}
		fc.records = append(fc.records, d)
	}
	return fc, nil
}

// dedupe flattens files in order, keeping the first occurrence of every
// code. Bloom filters select the suspect codes: those repeated inside a file
// or possibly present in an earlier file. Only suspects are tracked exactly,
// so false positives cost a map entry and never drop a coupon.
func dedupe(files []*fileCoupons) (out []coupon.Draft, dups int) {
	suspects := make(map[string]struct{})
	for i, fc := range files {
		for code := range fc.suspects {
			suspects[code] = struct{}{}
		}
		for _, rec := range fc.records {
			if mayContain(files[:i], rec.Code) {
				suspects[rec.Code] = struct{}{}
			}
		}
	}

	seen := make(map[string]struct{}, len(suspects))
	for _, fc := range files {
		for _, rec := range fc.records {
			code := rec.Code
			if _, ok := suspects[code]; ok {
				if _, dup := seen[code]; dup {
					dups++
					continue
				}
				seen[code] = struct{}{}
			}
			out = append(out, rec)
		}
	}
	return out, dups
}

func mayContain(files []*fileCoupons, code string) bool {
	for _, fc := range files {
		if fc.filter.TestString(code) {
			return true
		}
	}
	return false
}

// upserter is satisfied by postgres.CouponRepository.
type upserter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

// writeCoupons upserts coupons by code. Existing usage counters are kept.
func writeCoupons(ctx context.Context, repo upserter, drafts []coupon.Draft, now time.Time) error {
	slog.Info("writing coupons to database", slog.Int("count", len(drafts)))

	for i, d := range drafts {
		c := &coupon.Coupon{
			ID:              uuid.NewString(),
			Code:            d.Code,
			DiscountPercent: d.DiscountPercent,
			ValidUntil:      d.ValidUntil,
			MaxUses:         d.MaxUses,
			CreatedAt:       now,
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", d.Code)
		}

		if (i+1)%100 == 0 || i+1 == len(drafts) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(drafts)))
		}
	}

	return nil
}
