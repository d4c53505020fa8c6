package datalake

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"crossfeed/internal/models"
	"crossfeed/pkg/utils"
)

// WriteRequest carries an immutable snapshot of one partition's buffered
// rows. No reference to a live, still-growing buffer ever crosses this
// boundary; the persistence consumer always copies before enqueuing.
type WriteRequest struct {
	PartitionPath string
	Rows          []row
}

type partitionKey struct {
	exchange string
	symbol   string
	date     string
	hour     string
}

// ParquetWriter is the persistence path: an in-process buffer per
// partition plus one dedicated, strictly serialized writer task that
// drains WriteRequests and writes row groups to disk.
type ParquetWriter struct {
	root          string
	batchSize     int
	flushInterval time.Duration

	bufMu   sync.Mutex
	buffers map[partitionKey][]row

	queue *writeQueue
	log   *utils.Logger

	stopCh    chan struct{}
	stopOnce  sync.Once
	timerWG   sync.WaitGroup
	writerWG  sync.WaitGroup
}

func NewParquetWriter(root string, batchSize int, flushInterval time.Duration) *ParquetWriter {
	if batchSize <= 0 {
		batchSize = 10000
	}
	return &ParquetWriter{
		root:          root,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffers:       make(map[partitionKey][]row),
		queue:         newWriteQueue(),
		log:           utils.L().With(utils.String("component", "parquet_writer")),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the serialized writer task and the partition flush
// timer. Call once before Enqueue.
func (w *ParquetWriter) Start() {
	w.writerWG.Add(1)
	go w.runWriter()
	w.timerWG.Add(1)
	go w.runFlushTimer()
}

// Enqueue buffers quote under its partition key, flushing immediately if
// the buffer has reached BatchSize.
func (w *ParquetWriter) Enqueue(q models.Quote, minVolume, maxVolume float64) {
	ts := q.EffectiveTimestamp()
	key := partitionKey{
		exchange: q.Exchange,
		symbol:   utils.FilesystemSymbol(q.Symbol),
		date:     utils.PartitionDate(ts),
		hour:     utils.PartitionHour(ts),
	}
	r := toRow(q, minVolume, maxVolume)

	w.bufMu.Lock()
	w.buffers[key] = append(w.buffers[key], r)
	full := len(w.buffers[key]) >= w.batchSize
	w.bufMu.Unlock()

	if full {
		w.flush(key, time.Now())
	}
}

func (w *ParquetWriter) runFlushTimer() {
	defer w.timerWG.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			w.flushAll()
			return
		case <-ticker.C:
			w.flushAll()
		}
	}
}

func (w *ParquetWriter) flushAll() {
	w.bufMu.Lock()
	keys := make([]partitionKey, 0, len(w.buffers))
	for k := range w.buffers {
		keys = append(keys, k)
	}
	w.bufMu.Unlock()

	now := time.Now()
	for _, k := range keys {
		w.flush(k, now)
	}
}

// flush copies the live buffer into an immutable snapshot, clears the
// live buffer, and enqueues the snapshot onto the writer channel. The
// copy happens before the live buffer is cleared so the writer task
// never observes a buffer still being appended to.
func (w *ParquetWriter) flush(key partitionKey, at time.Time) {
	w.bufMu.Lock()
	rows := w.buffers[key]
	if len(rows) == 0 {
		w.bufMu.Unlock()
		return
	}
	snapshot := make([]row, len(rows))
	copy(snapshot, rows)
	delete(w.buffers, key)
	w.bufMu.Unlock()

	path := w.partitionPath(key, at)
	w.queue.Push(WriteRequest{PartitionPath: path, Rows: snapshot})
}

func (w *ParquetWriter) partitionPath(key partitionKey, at time.Time) string {
	dir := filepath.Join(w.root,
		"exchange="+key.exchange,
		"symbol="+key.symbol,
		"date="+key.date,
		"hour="+key.hour,
	)
	filename := fmt.Sprintf("spreads-%s.parquet", utils.PartitionFileStem(at))
	return filepath.Join(dir, filename)
}

// runWriter is the single serialized writer task. At most one flush is
// in-flight at a time by construction: the queue is drained strictly
// one request at a time.
func (w *ParquetWriter) runWriter() {
	defer w.writerWG.Done()
	for {
		req, ok := w.queue.Pop()
		if !ok {
			return
		}
		if err := w.writeFile(req); err != nil {
			w.log.Warn("parquet write failed", utils.String("partition", req.PartitionPath), utils.Err(err))
		}
	}
}

func (w *ParquetWriter) writeFile(req WriteRequest) error {
	if err := os.MkdirAll(filepath.Dir(req.PartitionPath), 0o755); err != nil {
		return fmt.Errorf("mkdir partition dir: %w", err)
	}

	f, err := os.Create(req.PartitionPath)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer f.Close()

	pw := parquet.NewGenericWriter[row](f)
	if _, err := pw.Write(req.Rows); err != nil {
		return fmt.Errorf("write row group: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}

	return nil
}

// QueueDepth reports the number of write requests waiting for the
// writer task, a monitored health metric per spec.md §4.5.
func (w *ParquetWriter) QueueDepth() int {
	return w.queue.Len()
}

// Stop flushes every partition, drains the write queue, and waits for
// the writer task to finish, used on process cancellation so no
// buffered data is lost.
func (w *ParquetWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.timerWG.Wait()
	w.queue.Close()
	w.writerWG.Wait()
}
