package usage

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
)

// Store appends records to data/usage/{tenant}/{YYYY-MM}/{YYYY-MM-DD}.jsonl
// and reads them back for aggregation. Appends of a single terminated line
// are safe under concurrent writers; a per-file mutex serializes writers
// within this process.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at dir (conventionally "data/usage").
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) dayPath(tenantID string, day time.Time) string {
	day = day.UTC()
	return filepath.Join(s.dir, tenantID, day.Format("2006-01"), day.Format("2006-01-02")+".jsonl")
}

func (s *Store) fileLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// Record appends rec to the tenant's file for the record's UTC day. The line
// is on disk when Record returns.
func (s *Store) Record(tenantID string, rec *Record) error {
	ts, err := time.Parse(TimestampLayout, rec.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	path := s.dayPath(tenantID, ts)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create usage dir: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	line = append(line, '\n')

	lock := s.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open usage file: %w", err)
	}
	defer f.Close()

	// One write syscall per record keeps concurrent appends line-atomic.
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

// readDay returns all parseable records in the tenant's file for day.
// Blank and malformed lines are skipped — a torn write must not poison
// aggregation.
func (s *Store) readDay(tenantID string, day time.Time) ([]*Record, error) {
	path := s.dayPath(tenantID, day)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open usage file: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := &Record{}
		if err := json.Unmarshal(line, rec); err != nil {
			slog.Warn("skipping malformed usage line", "tenant", tenantID, "file", path)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read usage file: %w", err)
	}
	return records, nil
}

// DailyUsage aggregates one tenant day. A missing file yields the zero
// aggregation.
func (s *Store) DailyUsage(tenantID string, day time.Time) (*Aggregation, error) {
	records, err := s.readDay(tenantID, day)
	if err != nil {
		return nil, err
	}
	return aggregate(records), nil
}

// WeeklyUsage aggregates the 7 days starting at start (inclusive).
func (s *Store) WeeklyUsage(tenantID string, start time.Time) (*Aggregation, error) {
	return s.RangeUsage(tenantID, start, start.AddDate(0, 0, 6))
}

// MonthlyUsage aggregates every day of the given calendar month.
func (s *Store) MonthlyUsage(tenantID string, year int, month time.Month) (*Aggregation, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return s.RangeUsage(tenantID, first, last)
}

// RangeUsage aggregates all days from start through end inclusive. Days
// without a file contribute nothing.
func (s *Store) RangeUsage(tenantID string, start, end time.Time) (*Aggregation, error) {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)

	var all []*Record
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		records, err := s.readDay(tenantID, day)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return aggregate(all), nil
}

// TodayCost returns the tenant's spend so far for the current UTC day.
func (s *Store) TodayCost(tenantID string) (float64, error) {
	agg, err := s.DailyUsage(tenantID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return agg.Cost, nil
}

// LimitStatus reports today's spend against a daily cap. A nil cap means
// unlimited and never exceeded.
type LimitStatus struct {
	TenantID   string   `json:"tenantId"`
	SpendUSD   float64  `json:"spendUSD"`
	MaxUSD     *float64 `json:"maxUSD"`
	Percentage int      `json:"percentage"`
	Exceeded   bool     `json:"exceeded"`
}

// LimitStatus computes the tenant's standing against maxUSD for today.
func (s *Store) LimitStatus(tenantID string, maxUSD *float64) (*LimitStatus, error) {
	spend, err := s.TodayCost(tenantID)
	if err != nil {
		return nil, err
	}
	st := &LimitStatus{
		TenantID: tenantID,
		SpendUSD: spend,
		MaxUSD:   maxUSD,
	}
	if maxUSD != nil {
		st.Exceeded = spend >= *maxUSD
		if *maxUSD > 0 {
			st.Percentage = int(spend / *maxUSD * 100)
		} else {
			st.Percentage = 100
		}
	}
	return st, nil
}
