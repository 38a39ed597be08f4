package services

import (
	"sync"
	"time"

	"github.com/yeremiapane/pix-checkout/models"
)

// StatusFetcher returns the current status for a gateway payment id.
type StatusFetcher func(paymentID string) (string, error)

// PollerOptions tune a StatusPoller. Zero values fall back to the
// defaults used by the checkout page.
type PollerOptions struct {
	Interval         time.Duration // base tick interval (default 3s)
	MinSpacing       time.Duration // minimum gap between checks (default 1s)
	BackoffThreshold int           // consecutive PENDING results before the interval doubles (default 10)
	Expiration       time.Time     // zero means no expiration
	Now              func() time.Time
}

// StatusPoller repeatedly checks a payment's status until a terminal
// status is observed or the expiration passes. One goroutine per poller;
// checks are timer-driven and rate-bounded, never concurrent.
type StatusPoller struct {
	paymentID string
	fetch     StatusFetcher
	opts      PollerOptions

	updates chan string
	stop    chan struct{}
	force   chan struct{}

	mu          sync.Mutex
	running     bool
	lastCheck   time.Time
	pendingRuns int
	backedOff   bool
}

func NewStatusPoller(paymentID string, fetch StatusFetcher, opts PollerOptions) *StatusPoller {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.MinSpacing <= 0 {
		opts.MinSpacing = time.Second
	}
	if opts.BackoffThreshold <= 0 {
		opts.BackoffThreshold = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StatusPoller{
		paymentID: paymentID,
		fetch:     fetch,
		opts:      opts,
		updates:   make(chan string, 8),
		stop:      make(chan struct{}),
		force:     make(chan struct{}, 1),
	}
}

// Updates delivers every observed status. The channel closes when the
// poller stops, after the terminal status (if any) has been sent.
func (sp *StatusPoller) Updates() <-chan string {
	return sp.updates
}

// Start launches the polling goroutine. Calling Start twice is a no-op.
func (sp *StatusPoller) Start() {
	sp.mu.Lock()
	if sp.running {
		sp.mu.Unlock()
		return
	}
	sp.running = true
	sp.mu.Unlock()

	go sp.run()
}

// Stop cancels polling. Safe to call more than once.
func (sp *StatusPoller) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.running {
		return
	}
	sp.running = false
	close(sp.stop)
}

// ForceCheck requests an immediate check. The request is dropped when a
// check ran less than MinSpacing ago, bounding the request rate under
// rapid manual triggers.
func (sp *StatusPoller) ForceCheck() {
	select {
	case sp.force <- struct{}{}:
	default:
	}
}

func (sp *StatusPoller) run() {
	defer close(sp.updates)

	interval := sp.opts.Interval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-sp.stop:
			return
		case <-sp.force:
			if sp.check() {
				return
			}
		case <-timer.C:
			if sp.check() {
				return
			}
		}

		// The interval doubles once after too many consecutive PENDING
		// results, to reduce load on long-lived codes.
		sp.mu.Lock()
		if !sp.backedOff && sp.pendingRuns > sp.opts.BackoffThreshold {
			interval *= 2
			sp.backedOff = true
		}
		sp.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)
	}
}

// check performs one status fetch, honouring the minimum spacing.
// Returns true when polling must stop.
func (sp *StatusPoller) check() bool {
	now := sp.opts.Now()

	sp.mu.Lock()
	if !sp.lastCheck.IsZero() && now.Sub(sp.lastCheck) < sp.opts.MinSpacing {
		sp.mu.Unlock()
		return false
	}
	sp.lastCheck = now
	sp.mu.Unlock()

	if !sp.opts.Expiration.IsZero() && now.After(sp.opts.Expiration) {
		return true
	}

	status, err := sp.fetch(sp.paymentID)
	if err != nil {
		// Fetch failures degrade to PENDING rather than killing the
		// poller; the next tick retries.
		status = models.StatusPending
	}

	select {
	case sp.updates <- status:
	default:
	}

	if models.IsTerminalStatus(status) {
		return true
	}

	sp.mu.Lock()
	if status == models.StatusPending {
		sp.pendingRuns++
	} else {
		sp.pendingRuns = 0
	}
	sp.mu.Unlock()
	return false
}
