package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeremiapane/pix-checkout/models"
)

func collectUpdates(sp *StatusPoller, timeout time.Duration) []string {
	var got []string
	deadline := time.After(timeout)
	for {
		select {
		case status, ok := <-sp.Updates():
			if !ok {
				return got
			}
			got = append(got, status)
		case <-deadline:
			return got
		}
	}
}

func TestStatusPoller_StopsOnTerminalStatus(t *testing.T) {
	var calls int32
	fetch := func(paymentID string) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return models.StatusPending, nil
		}
		return models.StatusConfirmed, nil
	}

	sp := NewStatusPoller("pay_1", fetch, PollerOptions{
		Interval:   5 * time.Millisecond,
		MinSpacing: time.Nanosecond,
	})
	sp.Start()

	got := collectUpdates(sp, 2*time.Second)

	if assert.NotEmpty(t, got) {
		assert.Equal(t, models.StatusConfirmed, got[len(got)-1])
	}
	// The channel closed, so polling stopped for good.
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestStatusPoller_StopsOnExpiration(t *testing.T) {
	fetch := func(paymentID string) (string, error) {
		return models.StatusPending, nil
	}

	now := time.Now()
	sp := NewStatusPoller("pay_2", fetch, PollerOptions{
		Interval:   5 * time.Millisecond,
		MinSpacing: time.Nanosecond,
		Expiration: now.Add(30 * time.Millisecond),
	})
	sp.Start()

	got := collectUpdates(sp, 2*time.Second)

	// Only PENDING was ever observed; the poller quit on expiry.
	for _, status := range got {
		assert.Equal(t, models.StatusPending, status)
	}
}

func TestStatusPoller_MinSpacingSuppressesForcedChecks(t *testing.T) {
	var calls int32
	fetch := func(paymentID string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return models.StatusPending, nil
	}

	sp := NewStatusPoller("pay_3", fetch, PollerOptions{
		Interval:   time.Hour, // ticks never fire during the test
		MinSpacing: time.Hour, // so only the first check may run
	})
	sp.Start()
	defer sp.Stop()

	sp.ForceCheck()
	time.Sleep(20 * time.Millisecond)
	sp.ForceCheck()
	sp.ForceCheck()
	time.Sleep(20 * time.Millisecond)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestStatusPoller_BackoffAfterConsecutivePending(t *testing.T) {
	var calls int32
	fetch := func(paymentID string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return models.StatusPending, nil
	}

	sp := NewStatusPoller("pay_4", fetch, PollerOptions{
		Interval:         2 * time.Millisecond,
		MinSpacing:       time.Nanosecond,
		BackoffThreshold: 3,
	})
	sp.Start()

	time.Sleep(60 * time.Millisecond)
	sp.Stop()

	// With a threshold of 3 and a doubled interval afterwards, the
	// number of checks lands well below the no-backoff ceiling (~30).
	n := atomic.LoadInt32(&calls)
	assert.Greater(t, n, int32(3))
	assert.Less(t, n, int32(25))
}

func TestStatusPoller_FetchErrorDegradesToPending(t *testing.T) {
	var calls int32
	fetch := func(paymentID string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", assert.AnError
		}
		return models.StatusConfirmed, nil
	}

	sp := NewStatusPoller("pay_5", fetch, PollerOptions{
		Interval:   5 * time.Millisecond,
		MinSpacing: time.Nanosecond,
	})
	sp.Start()

	got := collectUpdates(sp, 2*time.Second)

	if assert.GreaterOrEqual(t, len(got), 2) {
		assert.Equal(t, models.StatusPending, got[0])
		assert.Equal(t, models.StatusConfirmed, got[len(got)-1])
	}
}
