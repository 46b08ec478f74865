// Package journal keeps an append-only JSONL record of grid edits and
// queries.
//
// Emit never blocks the caller: entries go into a fixed ring buffer that a
// background writer drains in batches. A global rate limiter and the ring
// size bound memory and disk use; overflow drops the oldest pending entries.
package journal

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	BufferSize         = 1024                   // Ring buffer size
	BatchFlushSize     = 64                     // Entries per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
)

// EntryVersion is bumped when the entry layout changes.
const EntryVersion uint8 = 1

// Entry is one journal line.
type Entry struct {
	Version   uint8           `json:"v"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"ts"` // Unix nano
	Sequence  uint64          `json:"seq"`
	GridVer   uint64          `json:"gridVersion"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEntry builds an entry with a JSON-encoded payload.
func NewEntry(typ string, gridVersion uint64, payload interface{}) Entry {
	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	return Entry{
		Version:   EntryVersion,
		Type:      typ,
		Timestamp: time.Now().UnixNano(),
		GridVer:   gridVersion,
		Payload:   raw,
	}
}

// Config controls the journal limits.
type Config struct {
	MaxPerSecond float64
	Burst        int
}

// DefaultConfig allows a steady 1000 entries/s with bursts of 100.
func DefaultConfig() Config {
	return Config{MaxPerSecond: 1000, Burst: 100}
}

// Journal is a bounded, rate-limited JSONL writer.
type Journal struct {
	mu        sync.Mutex // guards the ring
	buffer    [BufferSize]Entry
	writeHead uint64
	readHead  uint64

	limiter *rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out   io.Writer
	file  *os.File
	outMu sync.Mutex

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writtenCount atomic.Uint64
}

// New creates a stopped journal.
func New(cfg Config) *Journal {
	return &Journal{
		limiter:  rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), cfg.Burst),
		stopChan: make(chan struct{}),
	}
}

// Start opens path for append and starts the writer goroutine.
func (j *Journal) Start(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	j.file = f
	j.StartWriter(f)
	return nil
}

// StartWriter starts the writer goroutine against an arbitrary writer.
func (j *Journal) StartWriter(w io.Writer) {
	if j.running.Load() {
		return
	}
	j.out = w
	j.running.Store(true)
	j.writerWg.Add(1)
	go j.writerLoop()
}

// Stop flushes pending entries and closes the file, if any.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		j.outMu.Lock()
		if j.file != nil {
			j.file.Close()
		}
		j.outMu.Unlock()
	})
}

// Emit queues an entry. It returns false when the journal is stopped or the
// entry was rate limited.
func (j *Journal) Emit(e Entry) bool {
	if !j.running.Load() {
		return false
	}
	if !j.limiter.Allow() {
		j.droppedCount.Add(1)
		return false
	}

	j.mu.Lock()
	if j.writeHead-j.readHead >= BufferSize {
		// Full: drop the oldest pending entry
		j.readHead++
		j.droppedCount.Add(1)
	}
	j.writeHead++
	e.Sequence = j.writeHead
	j.buffer[j.writeHead%BufferSize] = e
	j.mu.Unlock()

	j.totalCount.Add(1)
	return true
}

func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, BatchFlushSize)

	for {
		select {
		case <-j.stopChan:
			// Final flush of everything still pending
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}

		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

// collectBatch takes up to BatchFlushSize pending entries off the ring.
func (j *Journal) collectBatch(batch []Entry) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	for j.readHead < j.writeHead && len(batch) < BatchFlushSize {
		j.readHead++
		batch = append(batch, j.buffer[j.readHead%BufferSize])
	}
	return batch
}

// flushBatch writes entries as newline-delimited JSON.
func (j *Journal) flushBatch(batch []Entry) {
	j.outMu.Lock()
	defer j.outMu.Unlock()

	if j.out == nil {
		return
	}

	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := j.out.Write(data); err != nil {
			j.droppedCount.Add(1)
			continue
		}
		j.writtenCount.Add(1)
	}
}

// Stats returns counters for monitoring.
func (j *Journal) Stats() map[string]interface{} {
	j.mu.Lock()
	pending := j.writeHead - j.readHead
	j.mu.Unlock()

	return map[string]interface{}{
		"total":   j.totalCount.Load(),
		"written": j.writtenCount.Load(),
		"dropped": j.droppedCount.Load(),
		"pending": pending,
		"running": j.running.Load(),
	}
}

// DroppedCount returns the number of entries lost to limits or write errors.
func (j *Journal) DroppedCount() uint64 {
	return j.droppedCount.Load()
}
