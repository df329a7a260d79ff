package record

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	BufferSize              = 1024                   // Circular buffer size
	BatchFlushSize          = 64                     // Records per sink write
	DefaultFlushInterval    = 100 * time.Millisecond // How often to flush
	DefaultMaxRecordsPerSec = 10000                  // Global pacing rate
	Unlimited               = -1                     // MaxRecordsPerSec without pacing
)

// LogConfig tunes the asynchronous writer.
type LogConfig struct {
	FlushInterval    time.Duration
	MaxRecordsPerSec int // 0 uses the default, Unlimited disables pacing
}

// DefaultLogConfig returns production defaults.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		FlushInterval:    DefaultFlushInterval,
		MaxRecordsPerSec: DefaultMaxRecordsPerSec,
	}
}

// LogStats is a point-in-time view of the log counters.
type LogStats struct {
	Total    uint64 `json:"total"`
	Dropped  uint64 `json:"dropped"`
	Written  uint64 `json:"written"`
	Failures uint64 `json:"failures"`
	Pending  uint64 `json:"pending"`
	Running  bool   `json:"running"`
}

// Log is a bounded record queue drained by a background writer.
//
// Records are the analysis output, so nothing accepted is ever discarded:
// Emit is paced by a rate limiter and blocks while the buffer is full until
// the writer frees space. Only records emitted before Start or after Stop
// are rejected, and those are counted as dropped.
type Log struct {
	// Circular buffer guarded by mu
	mu        sync.Mutex
	notFull   *sync.Cond
	buffer    [BufferSize]Record
	writeHead uint64
	readHead  uint64
	closed    bool

	limiter *rate.Limiter
	sinks   []Sink
	cfg     LogConfig

	ctx      context.Context
	cancel   context.CancelFunc
	wake     chan struct{}
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writtenCount atomic.Uint64
	failureCount atomic.Uint64
}

// NewLog creates a log writing to the given sinks. Call Start to begin flushing.
func NewLog(cfg LogConfig, sinks ...Sink) *Log {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.MaxRecordsPerSec == 0 {
		cfg.MaxRecordsPerSec = DefaultMaxRecordsPerSec
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxRecordsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRecordsPerSec), max(cfg.MaxRecordsPerSec/10, 1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Log{
		limiter:  limiter,
		sinks:    sinks,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	l.notFull = sync.NewCond(&l.mu)
	return l
}

// Start begins the async writer goroutine.
func (l *Log) Start() {
	if l.running.Swap(true) {
		return
	}
	l.writerWg.Add(1)
	go l.writerLoop()
}

// Stop flushes every accepted record, then closes the sinks.
// Emit calls blocked on a full buffer return false.
func (l *Log) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.notFull.Broadcast()
		l.mu.Unlock()

		l.cancel()
		l.running.Store(false)
		close(l.stopChan)
		l.writerWg.Wait()

		for _, s := range l.sinks {
			if err := s.Close(); err != nil {
				log.Printf("⚠️ Record sink close failed: %v", err)
			}
		}
	})
}

// Emit queues a record, waiting for the rate limiter and for buffer space.
// It returns false only when the log is not running.
func (l *Log) Emit(rec Record) bool {
	if !l.running.Load() {
		l.droppedCount.Add(1)
		return false
	}
	if err := l.limiter.Wait(l.ctx); err != nil {
		l.droppedCount.Add(1)
		return false
	}

	l.mu.Lock()
	for !l.closed && l.writeHead-l.readHead >= BufferSize {
		l.signalWriter()
		l.notFull.Wait()
	}
	if l.closed {
		l.mu.Unlock()
		l.droppedCount.Add(1)
		return false
	}
	l.buffer[l.writeHead%BufferSize] = rec
	l.writeHead++
	pending := l.writeHead - l.readHead
	l.mu.Unlock()

	l.totalCount.Add(1)
	if pending >= BatchFlushSize {
		l.signalWriter()
	}
	return true
}

// signalWriter asks the writer for an early flush without blocking.
func (l *Log) signalWriter() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// writerLoop batches records to the sinks on a ticker, or sooner when a
// full batch is waiting.
func (l *Log) writerLoop() {
	defer l.writerWg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, BatchFlushSize)
	drain := func() {
		for {
			batch = l.collectBatch(batch[:0])
			if len(batch) == 0 {
				return
			}
			l.flushBatch(batch)
		}
	}

	for {
		select {
		case <-l.stopChan:
			// Final drain; closed is set, so nothing new arrives.
			drain()
			return
		case <-ticker.C:
			drain()
		case <-l.wake:
			drain()
		}
	}
}

// collectBatch moves up to BatchFlushSize pending records into batch and
// wakes emitters waiting for space.
func (l *Log) collectBatch(batch []Record) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.readHead < l.writeHead && len(batch) < BatchFlushSize {
		idx := l.readHead % BufferSize
		batch = append(batch, l.buffer[idx])
		l.buffer[idx] = nil
		l.readHead++
	}
	if len(batch) > 0 {
		l.notFull.Broadcast()
	}
	return batch
}

func (l *Log) flushBatch(batch []Record) {
	for _, s := range l.sinks {
		if err := s.Write(batch); err != nil {
			l.failureCount.Add(1)
			log.Printf("⚠️ Record sink write failed (%d records): %v", len(batch), err)
		}
	}
	l.writtenCount.Add(uint64(len(batch)))
}

// Stats returns counters for monitoring.
func (l *Log) Stats() LogStats {
	l.mu.Lock()
	pending := l.writeHead - l.readHead
	l.mu.Unlock()

	return LogStats{
		Total:    l.totalCount.Load(),
		Dropped:  l.droppedCount.Load(),
		Written:  l.writtenCount.Load(),
		Failures: l.failureCount.Load(),
		Pending:  pending,
		Running:  l.running.Load(),
	}
}
