package processor

import (
	"sync"
	"time"
)

// DefaultProgressInterval is the minimum time between persisted progress
// writes for a single job.
const DefaultProgressInterval = 800 * time.Millisecond

type progressUpdate struct {
	progress int
	message  string
}

// Reporter throttles job progress writes. Updates inside the minimum
// interval are coalesced: only the most recent one survives, persisted by a
// trailing-edge timer. Flush forces the pending update out synchronously and
// must be called before terminal status transitions so the last observed
// progress is durable.
//
// Persistence is advisory; the persist function is expected to swallow its
// own errors. The mutex is required because the deferred timer fires on its
// own goroutine.
type Reporter struct {
	mu          sync.Mutex
	persist     func(progress int, message string)
	minInterval time.Duration
	lastFlush   time.Time
	pending     *progressUpdate
	timer       *time.Timer
}

// NewReporter creates a progress reporter writing through persist
func NewReporter(persist func(progress int, message string), minInterval time.Duration) *Reporter {
	if minInterval <= 0 {
		minInterval = DefaultProgressInterval
	}
	return &Reporter{
		persist:     persist,
		minInterval: minInterval,
	}
}

// Update records the latest progress pair and flushes it immediately when
// the interval has elapsed, otherwise schedules a trailing flush
func (r *Reporter) Update(progress int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = &progressUpdate{progress: progress, message: message}

	elapsed := time.Since(r.lastFlush)
	if elapsed >= r.minInterval {
		r.flushLocked()
		return
	}

	if r.timer == nil {
		r.timer = time.AfterFunc(r.minInterval-elapsed, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.timer = nil
			r.flushLocked()
		})
	}
}

// Flush cancels any scheduled write and persists the pending update, if any
func (r *Reporter) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.flushLocked()
}

func (r *Reporter) flushLocked() {
	if r.pending == nil {
		return
	}
	update := *r.pending
	r.pending = nil
	r.lastFlush = time.Now()
	r.persist(update.progress, update.message)
}
