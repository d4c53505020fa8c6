// Package opportunity watches a directory of offline analytics CSV
// snapshots and exposes the current, threshold-filtered opportunity
// list to the chart assembler and HistoricalReader.
package opportunity

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"crossfeed/internal/models"
	"crossfeed/pkg/utils"
)

const cacheTTL = 10 * time.Second

// Filter loads, filters, and caches Opportunity rows from the newest CSV
// under StatsPath. A parse failure leaves the previous cache unchanged.
type Filter struct {
	statsPath string
	threshold float64
	log       *utils.Logger

	mu         sync.RWMutex
	cached     []models.Opportunity
	cachedAt   time.Time
	sourceFile string
}

func NewFilter(statsPath string, threshold float64) *Filter {
	return &Filter{
		statsPath: statsPath,
		threshold: threshold,
		log:       utils.L().With(utils.String("component", "opportunity_filter")),
	}
}

// Opportunities returns the cached opportunity list, reloading from disk
// if the cache has exceeded its 10s TTL.
func (f *Filter) Opportunities() []models.Opportunity {
	f.mu.RLock()
	fresh := time.Since(f.cachedAt) < cacheTTL
	cached := f.cached
	f.mu.RUnlock()

	if fresh {
		return cached
	}

	if err := f.reload(); err != nil {
		f.log.Warn("opportunity reload failed, keeping previous cache", utils.Err(err))
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cached
}

func (f *Filter) reload() error {
	path, err := f.newestCSV()
	if err != nil {
		return err
	}
	if path == "" {
		f.mu.Lock()
		f.cached = nil
		f.cachedAt = time.Now()
		f.mu.Unlock()
		return nil
	}

	opps, err := f.parseCSV(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].Symbol != opps[j].Symbol {
			return opps[i].Symbol < opps[j].Symbol
		}
		return opps[i].Exchange1 < opps[j].Exchange1
	})

	f.mu.Lock()
	f.cached = opps
	f.cachedAt = time.Now()
	f.sourceFile = path
	f.mu.Unlock()
	return nil
}

func (f *Filter) newestCSV() (string, error) {
	entries, err := os.ReadDir(f.statsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var newestPath string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newestMod = info.ModTime()
			newestPath = filepath.Join(f.statsPath, e.Name())
		}
	}
	return newestPath, nil
}

func (f *Filter) parseCSV(path string) ([]models.Opportunity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	required := []string{"symbol", "exchange1", "exchange2", "opportunity_cycles_040bp"}
	for _, c := range required {
		if _, ok := col[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var out []models.Opportunity
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		cycles, err := strconv.ParseFloat(record[col["opportunity_cycles_040bp"]], 64)
		if err != nil {
			continue
		}
		if cycles <= f.threshold {
			continue
		}

		out = append(out, models.Opportunity{
			Symbol:                 utils.CanonicalSymbol(record[col["symbol"]]),
			Exchange1:              record[col["exchange1"]],
			Exchange2:              record[col["exchange2"]],
			OpportunityCycles040bp: cycles,
		})
	}

	return out, nil
}
