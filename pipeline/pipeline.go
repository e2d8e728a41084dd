// Package pipeline deduplicates, filters, and writes extracted listings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aptscout/aptscout/config"
	"github.com/aptscout/aptscout/models"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(listings []*models.Listing) error
	Close() error
	Validate() error
}

// Dedup removes later duplicates by identity key, keeping the first record
// observed for each key so its descriptive fields win. Output order is the
// order of first occurrence; Dedup(Dedup(s)) == Dedup(s).
func Dedup(listings []*models.Listing) []*models.Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]*models.Listing, 0, len(listings))
	for _, listing := range listings {
		key := listing.IdentityKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, listing)
	}
	return out
}

// Filter returns the listings passing every set filter, preserving order.
func Filter(listings []*models.Listing, filters config.Filters) []*models.Listing {
	out := make([]*models.Listing, 0, len(listings))
	for _, listing := range listings {
		if filters.Match(listing) {
			out = append(out, listing)
		}
	}
	return out
}

// Pipeline coordinates validation, de-duplication, filtering, and output
// writing for listings streamed in from the crawler.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	filters   config.Filters
	listingCh chan *models.Listing
	batchSize int

	wg sync.WaitGroup

	// seen is bounded so long multi-site crawls cannot grow without limit;
	// within the configured size it behaves as first-write-wins.
	seen   *lru.Cache[string, struct{}]
	seenMu sync.Mutex

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline that applies cfg.Filters and batches output
// through writer.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}

	dedupeSize := cfg.DedupeMaxSize
	if dedupeSize <= 0 {
		dedupeSize = 512
	}
	seen, _ := lru.New[string, struct{}](dedupeSize)

	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		filters:   cfg.Filters,
		listingCh: make(chan *models.Listing, cfg.PipelineBufferSize),
		batchSize: cfg.BatchSize,
		seen:      seen,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues listings for downstream processing.
func (p *Pipeline) Process(listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, listing := range listings {
		if listing == nil {
			continue
		}
		if err := p.enqueue(listing); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.listingCh)
	})

	p.wg.Wait()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snapshot := p.GetMetrics()
				processed := snapshot["processed_listings"].(int64)
				dropped := snapshot["dropped"].(map[string]int)
				log.Printf("pipeline: processed=%d drop_reasons=%d", processed, len(dropped))
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Listing, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for listing := range p.listingCh {
		prepared := p.prepare(listing)
		if prepared == nil {
			continue
		}
		batch = append(batch, prepared)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// prepare applies the record invariants in order: signal check, first-wins
// dedup by identity key, then the caller's screening filters.
func (p *Pipeline) prepare(listing *models.Listing) *models.Listing {
	if !listing.HasSignal() {
		p.metrics.addDropped("no_identity_fields")
		return nil
	}

	key := listing.IdentityKey()
	p.seenMu.Lock()
	if _, dup := p.seen.Get(key); dup {
		p.seenMu.Unlock()
		p.metrics.addDropped("duplicate_identity")
		return nil
	}
	p.seen.Add(key, struct{}{})
	p.seenMu.Unlock()

	if !p.filters.Match(listing) {
		p.metrics.addDropped("filtered_out")
		return nil
	}

	p.metrics.incrementProcessed()
	return listing
}

func (p *Pipeline) enqueue(listing *models.Listing) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return ErrPipelineClosed
	case p.listingCh <- listing:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.listingCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	dropped   map[string]int
}

func newMetrics() metrics {
	return metrics{
		dropped: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addDropped(reason string) {
	m.mu.Lock()
	m.dropped[reason]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyDropped := make(map[string]int, len(m.dropped))
	for k, v := range m.dropped {
		copyDropped[k] = v
	}

	return map[string]interface{}{
		"processed_listings": m.processed,
		"dropped":            copyDropped,
	}
}
