package broker

import (
	"fmt"
	"time"

	"github.com/collabwsd/wsd/internal/resilience"
)

// MasterClient is the master process's side of the broker pipe pair:
// it writes "request" lines to the supervisor and can have its writes
// protected behind a circuit breaker so a wedged supervisor pipe
// degrades to fast failures rather than hanging every rendezvous.
type MasterClient struct {
	w       *Writer
	breaker *resilience.Breaker
}

// NewMasterClient wraps w with a circuit breaker that trips after five
// consecutive failed writes. While closed, its counts are cleared every
// 30s; once open it rejects writes for 10s before letting one probe
// write through.
func NewMasterClient(w *Writer) *MasterClient {
	breaker := resilience.New("broker-master", resilience.Settings{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &MasterClient{w: w, breaker: breaker}
}

// RequestChild writes "request <sessionId> <docURL>" to the supervisor
// pipe (spec §4.D.2 step 1).
func (c *MasterClient) RequestChild(sessionID, docURL string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.w.WriteLine(fmt.Sprintf("request %s %s", sessionID, docURL))
	})
	if err != nil {
		return fmt.Errorf("broker: request child for session %s: %w", sessionID, err)
	}
	return nil
}

// BreakerState exposes the underlying breaker state.
func (c *MasterClient) BreakerState() resilience.State {
	return c.breaker.State()
}
