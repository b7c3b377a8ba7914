package services

import (
	"cmp"
	"context"
	"encoding/csv"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mall-dashboard/internal/daterange"
	apperrors "mall-dashboard/internal/errors"
	"mall-dashboard/internal/metrics"
	"mall-dashboard/internal/models"
	"mall-dashboard/internal/pricerange"
)

const (
	batchSize       = 5000
	maxWorkers      = 8
	snapshotVersion = "v1"
)

// CSV columns, in file order.
var csvHeader = []string{"id", "customer_id", "customer_name", "product", "price", "quantity", "date", "img_src"}

type Snapshot struct {
	Purchases    []models.Purchase
	LastModified time.Time
	RecordCount  int64
}

// Store holds the purchase log and answers the dashboard API from memory.
type Store struct {
	mu sync.RWMutex

	purchases  []models.Purchase // by date ascending
	byCustomer map[int][]models.Purchase
	customers  []models.Customer // by id
	loadedAt   time.Time
	skipped    int64

	location    *time.Location
	snapshotDir string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type StoreOption func(*Store)

// WithLocation sets the zone for dates without an offset and for range bounds.
func WithLocation(loc *time.Location) StoreOption {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSnapshotDir enables the gob snapshot kept next to the parsed CSV.
func WithSnapshotDir(dir string) StoreOption {
	return func(s *Store) { s.snapshotDir = dir }
}

func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		byCustomer: make(map[int][]models.Purchase),
		location:   time.Local,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetData replaces the store's contents.
func (s *Store) SetData(purchases []models.Purchase) {
	sorted := slices.Clone(purchases)
	slices.SortStableFunc(sorted, func(a, b models.Purchase) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	byCustomer := make(map[int][]models.Purchase)
	totals := make(map[int]*models.Customer)
	for _, p := range sorted {
		byCustomer[p.CustomerID] = append(byCustomer[p.CustomerID], p)
		c := totals[p.CustomerID]
		if c == nil {
			c = &models.Customer{ID: p.CustomerID, Name: p.CustomerName}
			totals[p.CustomerID] = c
		}
		c.Count++
		c.TotalAmount = c.TotalAmount.Add(p.Price)
	}

	customers := make([]models.Customer, 0, len(totals))
	for _, c := range totals {
		customers = append(customers, *c)
	}
	slices.SortFunc(customers, func(a, b models.Customer) int { return cmp.Compare(a.ID, b.ID) })

	s.mu.Lock()
	s.purchases = sorted
	s.byCustomer = byCustomer
	s.customers = customers
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.metrics.SetPurchases(len(sorted))
}

// LoadFromCSV reads filename, or its snapshot when that is newer than the file.
func (s *Store) LoadFromCSV(ctx context.Context, filename string) error {
	if snap, err := s.loadSnapshot(filename); err == nil {
		info, statErr := os.Stat(filename)
		if statErr == nil && info.ModTime().Before(snap.LastModified) {
			s.SetData(snap.Purchases)
			s.logger.Info("loaded purchases from snapshot", "records", snap.RecordCount)
			return nil
		}
	}

	start := time.Now()
	s.logger.Info("processing CSV file", "filename", filename)

	purchases, skipped, err := s.parseCSV(ctx, filename)
	if err != nil {
		return fmt.Errorf("process csv: %w", err)
	}
	s.SetData(purchases)

	s.mu.Lock()
	s.skipped = skipped
	s.mu.Unlock()

	if err := s.saveSnapshot(filename, purchases); err != nil {
		s.logger.Warn("failed to save snapshot", "error", err)
	}

	duration := time.Since(start)
	s.logger.Info("csv processing complete",
		"records", len(purchases),
		"skipped", skipped,
		"duration", duration,
	)
	return nil
}

func (s *Store) parseCSV(ctx context.Context, filename string) ([]models.Purchase, int64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("empty file")
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, 0, err
	}

	var (
		purchases []models.Purchase
		skipped   int64
	)
	batch := make([][]string, 0, batchSize)

	flush := func() error {
		parsed, bad, err := s.parseBatch(ctx, batch)
		if err != nil {
			return err
		}
		purchases = append(purchases, parsed...)
		skipped += bad
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("read csv: %w", err)
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, 0, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, 0, err
		}
	}

	if len(purchases) == 0 {
		return nil, skipped, fmt.Errorf("no valid records found")
	}
	return purchases, skipped, nil
}

func checkHeader(header []string) error {
	if len(header) < len(csvHeader) {
		return fmt.Errorf("expected columns %s, got %d columns", strings.Join(csvHeader, ","), len(header))
	}
	for i, want := range csvHeader {
		got := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
		if got != want {
			return fmt.Errorf("column %d: expected %q, got %q", i+1, want, header[i])
		}
	}
	return nil
}

// parseBatch converts records concurrently. Invalid rows are counted and
// dropped; the batch order is preserved.
func (s *Store) parseBatch(ctx context.Context, batch [][]string) ([]models.Purchase, int64, error) {
	results := make([]models.Purchase, len(batch))
	valid := make([]bool, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	chunk := (len(batch) + maxWorkers - 1) / maxWorkers
	for start := 0; start < len(batch); start += chunk {
		end := min(start+chunk, len(batch))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p, err := parsePurchase(batch[i], s.location)
				if err != nil {
					continue
				}
				results[i] = p
				valid[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]models.Purchase, 0, len(batch))
	var skipped int64
	for i, ok := range valid {
		if !ok {
			skipped++
			continue
		}
		out = append(out, results[i])
	}
	return out, skipped, nil
}

func parsePurchase(record []string, loc *time.Location) (models.Purchase, error) {
	if len(record) < len(csvHeader) {
		return models.Purchase{}, fmt.Errorf("insufficient columns")
	}
	field := func(i int) string { return strings.TrimSpace(record[i]) }

	id, err := strconv.Atoi(field(0))
	if err != nil {
		return models.Purchase{}, fmt.Errorf("id: %w", err)
	}
	customerID, err := strconv.Atoi(field(1))
	if err != nil {
		return models.Purchase{}, fmt.Errorf("customer_id: %w", err)
	}
	price, err := decimal.NewFromString(field(4))
	if err != nil || price.IsNegative() {
		return models.Purchase{}, fmt.Errorf("price %q invalid", field(4))
	}
	quantity, err := strconv.Atoi(field(5))
	if err != nil || quantity < 1 {
		return models.Purchase{}, fmt.Errorf("quantity %q invalid", field(5))
	}
	date, err := parseDate(field(6), loc)
	if err != nil {
		return models.Purchase{}, err
	}
	if field(2) == "" || field(3) == "" {
		return models.Purchase{}, fmt.Errorf("customer name and product are required")
	}

	return models.Purchase{
		ID:           id,
		CustomerID:   customerID,
		CustomerName: field(2),
		Product:      field(3),
		Price:        price,
		Quantity:     quantity,
		Date:         date,
		ImageURL:     field(7),
	}, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateTime, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("date %q invalid", raw)
}

func (s *Store) snapshotPath(csvPath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(csvPath)
	return filepath.Join(s.snapshotDir, fmt.Sprintf("%s_%s.gob", name, snapshotVersion))
}

func (s *Store) saveSnapshot(csvPath string, purchases []models.Purchase) error {
	if s.snapshotDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(s.snapshotPath(csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(Snapshot{
		Purchases:    purchases,
		LastModified: time.Now(),
		RecordCount:  int64(len(purchases)),
	})
}

func (s *Store) loadSnapshot(csvPath string) (*Snapshot, error) {
	if s.snapshotDir == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(s.snapshotPath(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Customers lists customers whose name contains q.Name (case-insensitive).
// With SortBy set the list is ordered by total amount, otherwise by id.
func (s *Store) Customers(ctx context.Context, q models.CustomerQuery) ([]models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Name))
	out := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if needle == "" || strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}

	switch q.SortBy {
	case "asc", "desc":
		desc := q.SortBy == "desc"
		slices.SortStableFunc(out, func(a, b models.Customer) int {
			c := a.TotalAmount.Cmp(b.TotalAmount)
			if desc {
				return -c
			}
			return c
		})
	}
	return out, nil
}

// CustomerPurchases returns the customer's purchases, newest first.
func (s *Store) CustomerPurchases(ctx context.Context, id int) ([]models.CustomerPurchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.byCustomer[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("customer %d not found", id))
	}

	out := make([]models.CustomerPurchase, len(list))
	for i, p := range list {
		out[len(list)-1-i] = p.ForCustomer()
	}
	return out, nil
}

// FrequencyBetween buckets purchases made within [from, to]. A zero bound is
// open.
func (s *Store) FrequencyBetween(from, to time.Time) []models.PriceFrequency {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := 0
	if !from.IsZero() {
		lo, _ = slices.BinarySearchFunc(s.purchases, from, func(p models.Purchase, t time.Time) int {
			return p.Date.Compare(t)
		})
	}
	hi := len(s.purchases)
	if !to.IsZero() {
		hi, _ = slices.BinarySearchFunc(s.purchases, to, func(p models.Purchase, t time.Time) int {
			if p.Date.After(t) {
				return 1
			}
			return -1
		})
	}

	prices := make([]decimal.Decimal, 0, max(hi-lo, 0))
	for i := lo; i < hi; i++ {
		prices = append(prices, s.purchases[i].Price)
	}
	return pricerange.Aggregate(prices)
}

// PurchaseFrequency buckets purchases made on the range's calendar days.
func (s *Store) PurchaseFrequency(ctx context.Context, r daterange.Range) ([]models.PriceFrequency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to := r.Bounds(s.location)
	return s.FrequencyBetween(from, to), nil
}

func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"record_count":   len(s.purchases),
		"customers":      len(s.customers),
		"skipped":        s.skipped,
		"last_processed": s.loadedAt,
	}
	if n := len(s.purchases); n > 0 {
		stats["first_purchase"] = s.purchases[0].Date.Format(time.DateOnly)
		stats["last_purchase"] = s.purchases[n-1].Date.Format(time.DateOnly)
	}
	return stats
}
