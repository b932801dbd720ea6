package logging

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/metrics"
)

const logUploadPath = "/api/agent/logs/upload"

// Entry is one log record shipped to the backend.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// UploaderConfig tunes batching. Zero values take the documented defaults:
// batches of 100 entries or every 60 seconds, whichever comes first.
type UploaderConfig struct {
	BatchSize     int
	Interval      time.Duration
	QueueSize     int
	MaxRequeued   int
	DefaultTenant string
}

func (c *UploaderConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 2048
	}
	if c.MaxRequeued <= 0 {
		c.MaxRequeued = 10
	}
}

// Uploader buffers log entries and ships them in batches on a single consumer
// goroutine. Failed batches are requeued up to a cap; when the queue is full
// the oldest entries are dropped first.
type Uploader struct {
	cfg     UploaderConfig
	client  *httpx.Client
	console *zap.Logger

	queue    chan Entry
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	requeued [][]Entry
}

// NewUploader creates the uploader. The console logger reports upload
// failures without feeding back into the server sink.
func NewUploader(client *httpx.Client, cfg UploaderConfig, console *zap.Logger) *Uploader {
	cfg.applyDefaults()
	if console == nil {
		console = zap.NewNop()
	}
	return &Uploader{
		cfg:     cfg,
		client:  client,
		console: console,
		queue:   make(chan Entry, cfg.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (u *Uploader) Start() {
	go u.run()
}

// Enqueue adds an entry without blocking. When the queue is full the oldest
// buffered entry is dropped to make room.
func (u *Uploader) Enqueue(e Entry) {
	select {
	case u.queue <- e:
		return
	default:
	}
	select {
	case <-u.queue:
		metrics.LogEntriesDropped.Inc()
	default:
	}
	select {
	case u.queue <- e:
	default:
		metrics.LogEntriesDropped.Inc()
	}
}

func (u *Uploader) run() {
	defer close(u.done)
	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	batch := make([]Entry, 0, u.cfg.BatchSize)
	for {
		select {
		case e := <-u.queue:
			batch = append(batch, e)
			if len(batch) >= u.cfg.BatchSize {
				u.ship(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			u.retryFailed()
			if len(batch) > 0 {
				u.ship(batch)
				batch = batch[:0]
			}
		case <-u.stop:
			u.drain(batch)
			return
		}
	}
}

// drain empties the queue and the failed-batch backlog before shutdown so
// Flush ships everything enqueued, not just the batch in hand.
func (u *Uploader) drain(batch []Entry) {
	for {
		select {
		case e := <-u.queue:
			batch = append(batch, e)
			if len(batch) >= u.cfg.BatchSize {
				u.ship(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				u.ship(batch)
			}
			u.retryFailed()
			return
		}
	}
}

func (u *Uploader) ship(batch []Entry) {
	entries := make([]Entry, len(batch))
	copy(entries, batch)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := u.client.Post(ctx, logUploadPath, map[string]any{"entries": entries}, u.cfg.DefaultTenant, nil)
	if err != nil {
		u.console.Warn("Log batch upload failed, requeueing", zap.Int("entries", len(entries)), zap.Error(err))
		u.requeue(entries)
		return
	}
	metrics.LogBatchesUploaded.Inc()
}

func (u *Uploader) requeue(batch []Entry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requeued) >= u.cfg.MaxRequeued {
		// Drop the oldest failed batch to bound memory
		metrics.LogEntriesDropped.Add(float64(len(u.requeued[0])))
		u.requeued = u.requeued[1:]
	}
	u.requeued = append(u.requeued, batch)
}

func (u *Uploader) retryFailed() {
	u.mu.Lock()
	pending := u.requeued
	u.requeued = nil
	u.mu.Unlock()

	for _, batch := range pending {
		u.ship(batch)
	}
}

// Flush stops the consumer and waits for remaining entries within grace.
func (u *Uploader) Flush(grace time.Duration) {
	u.stopOnce.Do(func() { close(u.stop) })
	select {
	case <-u.done:
	case <-time.After(grace):
		u.console.Warn("Log uploader flush timed out")
	}
}
