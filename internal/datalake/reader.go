package datalake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"crossfeed/internal/models"
	"crossfeed/pkg/utils"
)

// HistoricalReader serves the GET /api/dashboard_data path: enumerate
// every parquet file under one (exchange, symbol) partition tree,
// regardless of date or hour, and return the time-ordered quote series.
// Only the writer task ever writes under the data-lake root; this reader
// opens files read-only.
type HistoricalReader struct {
	root string
	log  *utils.Logger
}

func NewHistoricalReader(root string) *HistoricalReader {
	return &HistoricalReader{root: root, log: utils.L().With(utils.String("component", "historical_reader"))}
}

// ReadSeries returns every quote under exchange={E}/symbol={SymbolFS},
// across all date/hour partitions, sorted by timestamp ascending.
func (r *HistoricalReader) ReadSeries(exchange, symbol string) ([]models.Quote, error) {
	fsSymbol := utils.FilesystemSymbol(symbol)
	base := filepath.Join(r.root, "exchange="+exchange, "symbol="+fsSymbol)

	var files []string
	err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".parquet" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("walk partition tree: %w", err)
	}

	var quotes []models.Quote
	for _, f := range files {
		rows, err := r.readFile(f)
		if err != nil {
			r.log.Warn("skipping unreadable parquet file", utils.String("path", f), utils.Err(err))
			continue
		}
		quotes = append(quotes, rows...)
	}

	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].EffectiveTimestamp().Before(quotes[j].EffectiveTimestamp())
	})

	return quotes, nil
}

func (r *HistoricalReader) readFile(path string) ([]models.Quote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, err
	}

	reader := parquet.NewGenericReader[row](f, pf.Schema())
	defer reader.Close()

	rows := make([]row, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && n == 0 {
		return nil, err
	}

	quotes := make([]models.Quote, 0, n)
	for _, rr := range rows[:n] {
		q, err := rr.toQuote()
		if err != nil {
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
