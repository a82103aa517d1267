package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

// Entry records one successfully built date partition of a derived dataset.
type Entry struct {
	DatasetID   string
	Date        models.Date
	Fingerprint string
	RowCount    int64
	BuiltAt     time.Time
}

// Tracker is the append-only build manifest. Coverage only ever extends; a
// failed build leaves prior coverage untouched.
type Tracker interface {
	// CoveredDates returns date -> build fingerprint for a dataset.
	CoveredDates(ctx context.Context, datasetID string) (map[models.Date]string, error)
	// Extend appends coverage for one date after a successful atomic publish.
	Extend(ctx context.Context, e Entry) error
}

// Fingerprint derives the build-parameter fingerprint stored with each
// manifest entry. Same inputs always hash identically, so an unchanged
// rebuild is detectable as a no-op.
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// Plan is the per-dataset outcome of diffing a requested range against
// coverage.
type Plan struct {
	ToBuild []models.Date // dates with no coverage, plus all covered dates when forced
	Skipped []models.Date // covered with a matching fingerprint; idempotent no-ops
	Stale   []models.Date // covered with a different fingerprint; reported, not rebuilt
}

// Diff computes which requested dates need building. Covered dates with a
// matching fingerprint are skipped; a fingerprint mismatch is surfaced as
// stale rather than silently rebuilt. force schedules every requested date.
func Diff(requested []models.Date, covered map[models.Date]string, fingerprint string, force bool) Plan {
	var p Plan
	for _, d := range requested {
		got, ok := covered[d]
		switch {
		case force || !ok:
			p.ToBuild = append(p.ToBuild, d)
		case got == fingerprint:
			p.Skipped = append(p.Skipped, d)
		default:
			p.Stale = append(p.Stale, d)
		}
	}
	return p
}

// Memory is an in-memory Tracker used by tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string]map[models.Date]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]map[models.Date]Entry)}
}

func (m *Memory) CoveredDates(_ context.Context, datasetID string) (map[models.Date]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[models.Date]string)
	for d, e := range m.entries[datasetID] {
		out[d] = e.Fingerprint
	}
	return out, nil
}

func (m *Memory) Extend(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[e.DatasetID] == nil {
		m.entries[e.DatasetID] = make(map[models.Date]Entry)
	}
	m.entries[e.DatasetID][e.Date] = e
	return nil
}

// Entries returns all entries for a dataset sorted by date, for assertions.
func (m *Memory) Entries(datasetID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.entries[datasetID]))
	for _, e := range m.entries[datasetID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
