package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// mailboxSet runs one coalescing evaluation mailbox per company: a
// buffered channel of capacity one with last-write-wins semantics, so
// bursty ingestion triggers a single recomputation instead of a storm.
// Superseded computations are additionally dropped by the history
// store's monotonicity check.
type mailboxSet struct {
	run  func(ctx context.Context, companyID string, asOf time.Time)
	log  zerolog.Logger
	ctx  context.Context
	stop context.CancelFunc

	mu    sync.Mutex
	boxes map[string]chan time.Time
	wg    sync.WaitGroup
}

func newMailboxSet(run func(ctx context.Context, companyID string, asOf time.Time), log zerolog.Logger) *mailboxSet {
	ctx, cancel := context.WithCancel(context.Background())
	return &mailboxSet{
		run:   run,
		log:   log,
		ctx:   ctx,
		stop:  cancel,
		boxes: make(map[string]chan time.Time),
	}
}

// notify requests a re-evaluation of the company. If a request is already
// pending it is replaced: last write wins.
func (m *mailboxSet) notify(companyID string, asOf time.Time) {
	m.mu.Lock()
	box, ok := m.boxes[companyID]
	if !ok {
		box = make(chan time.Time, 1)
		m.boxes[companyID] = box
		m.wg.Add(1)
		go m.worker(companyID, box)
	}
	m.mu.Unlock()

	for {
		select {
		case box <- asOf:
			return
		default:
			// Full: discard the pending request and retry.
			select {
			case <-box:
			default:
			}
		}
	}
}

func (m *mailboxSet) worker(companyID string, box chan time.Time) {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case asOf := <-box:
			m.run(m.ctx, companyID, asOf)
		}
	}
}

func (m *mailboxSet) close() {
	m.stop()
	m.wg.Wait()
}
