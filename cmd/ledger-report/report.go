package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
	"github.com/xenking/sazon-bot/internal/storage/csvstore"
)

const (
	bloomMinCapacity = 10_000
	bloomFPR         = 0.001
)

// DishStat aggregates the lines of one dish.
type DishStat struct {
	Name     string
	Quantity int
	Revenue  decimal.Decimal
}

// Summary aggregates a set of ledgers.
type Summary struct {
	Files   int
	Orders  int
	Revenue decimal.Decimal
	Dishes  map[string]*DishStat
	// Targets counts orders per district or pickup location.
	Targets  map[string]int
	Payments map[string]int
	// Duplicates counts orders whose fingerprint was already seen. The
	// bloom filter may overcount by its false positive rate.
	Duplicates int
}

func newSummary() *Summary {
	return &Summary{
		Revenue:  decimal.Zero,
		Dishes:   make(map[string]*DishStat),
		Targets:  make(map[string]int),
		Payments: make(map[string]int),
	}
}

func (s *Summary) add(o *order.ConfirmedOrder) {
	s.Orders++
	s.Revenue = s.Revenue.Add(o.Total)
	for _, it := range o.Items {
		key := catalog.Normalize(it.DishName)
		st, ok := s.Dishes[key]
		if !ok {
			st = &DishStat{Name: it.DishName, Revenue: decimal.Zero}
			s.Dishes[key] = st
		}
		st.Quantity += it.Quantity
		st.Revenue = st.Revenue.Add(it.LineTotal)
	}
	s.Targets[o.DeliveryTarget()]++
	s.Payments[strings.ToLower(strings.TrimSpace(o.PaymentMethod))]++
}

func (s *Summary) merge(other *Summary) {
	s.Files += other.Files
	s.Orders += other.Orders
	s.Revenue = s.Revenue.Add(other.Revenue)
	for key, st := range other.Dishes {
		cur, ok := s.Dishes[key]
		if !ok {
			s.Dishes[key] = &DishStat{Name: st.Name, Quantity: st.Quantity, Revenue: st.Revenue}
			continue
		}
		cur.Quantity += st.Quantity
		cur.Revenue = cur.Revenue.Add(st.Revenue)
	}
	for k, n := range other.Targets {
		s.Targets[k] += n
	}
	for k, n := range other.Payments {
		s.Payments[k] += n
	}
}

// fingerprint identifies a submission: the same lines, total, target and
// payment within the same minute.
func fingerprint(o *order.ConfirmedOrder) string {
	var b strings.Builder
	for _, it := range o.Items {
		b.WriteString(catalog.Normalize(it.DishName))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(it.Quantity))
		b.WriteByte(';')
	}
	b.WriteByte('|')
	b.WriteString(o.Total.StringFixed(2))
	b.WriteByte('|')
	b.WriteString(catalog.Normalize(o.DeliveryTarget()))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(o.PaymentMethod)))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(o.ConfirmedAt.UTC().Truncate(time.Minute).Unix(), 10))
	return b.String()
}

type fileResult struct {
	summary      *Summary
	fingerprints []string
}

// expand resolves globs to a sorted, de-duplicated file list.
func expand(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, errors.Wrapf(err, "glob %q", p)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no ledger matches %q", p)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// scan reads files concurrently and merges them in file order, so duplicate
// detection is deterministic.
func scan(ctx context.Context, files []string, concurrency int) (*Summary, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, path := range files {
		g.Go(func() error {
			r, err := scanFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := newSummary()
	n := 0
	for _, r := range results {
		total.merge(r.summary)
		n += len(r.fingerprints)
	}

	seen := bloom.NewWithEstimates(uint(max(n, bloomMinCapacity)), bloomFPR)
	for _, r := range results {
		for _, fp := range r.fingerprints {
			if seen.TestAndAddString(fp) {
				total.Duplicates++
			}
		}
	}
	return total, nil
}

func scanFile(ctx context.Context, path string) (fileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileResult{}, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return fileResult{}, errors.Wrap(err, "create gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	res := fileResult{summary: newSummary()}
	res.summary.Files = 1
	if err := csvstore.ReadLedger(r, func(o *order.ConfirmedOrder) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.summary.add(o)
		res.fingerprints = append(res.fingerprints, fingerprint(o))
		return nil
	}); err != nil {
		return fileResult{}, err
	}
	return res, nil
}

// Write prints the report. top limits the dish list; 0 lists all.
func (s *Summary) Write(w io.Writer, top int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Files\t%d\n", s.Files)
	fmt.Fprintf(tw, "Orders\t%d\n", s.Orders)
	fmt.Fprintf(tw, "Revenue\t%s\n", catalog.FormatPrice(s.Revenue))
	fmt.Fprintf(tw, "Likely duplicates\t%d\n", s.Duplicates)

	fmt.Fprintln(tw, "\nDish\tQuantity\tRevenue")
	dishes := s.TopDishes(top)
	for _, st := range dishes {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", st.Name, st.Quantity, catalog.FormatPrice(st.Revenue))
	}

	fmt.Fprintln(tw, "\nDelivery\tOrders")
	for _, kv := range sortedCounts(s.Targets) {
		fmt.Fprintf(tw, "%s\t%d\n", kv.key, kv.n)
	}

	fmt.Fprintln(tw, "\nPayment\tOrders")
	for _, kv := range sortedCounts(s.Payments) {
		fmt.Fprintf(tw, "%s\t%d\n", kv.key, kv.n)
	}

	return tw.Flush()
}

// TopDishes returns dishes by quantity, then name. top <= 0 returns all.
func (s *Summary) TopDishes(top int) []*DishStat {
	dishes := make([]*DishStat, 0, len(s.Dishes))
	for _, st := range s.Dishes {
		dishes = append(dishes, st)
	}
	slices.SortFunc(dishes, func(a, b *DishStat) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if top > 0 && len(dishes) > top {
		dishes = dishes[:top]
	}
	return dishes
}

type count struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{key: k, n: n})
	}
	slices.SortFunc(out, func(a, b count) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	return out
}
