package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) breaker(opts ...Option) *Breaker {
	opts = append(opts, WithClock(func() time.Time { return s.now }))
	return New("audit-sink", opts...)
}

func (s *BreakerSuite) TestStartsClosed() {
	b := s.breaker()
	s.Equal("audit-sink", b.Name())
	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestOpensOnConsecutiveFailures() {
	b := s.breaker(WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		s.False(useFallback)
		s.False(change.Opened)
	}
	useFallback, change := b.RecordFailure()
	s.True(useFallback)
	s.True(change.Opened)
	s.True(b.IsOpen())

	// Already open: no second transition.
	_, change = b.RecordFailure()
	s.False(change.Opened)
}

func (s *BreakerSuite) TestSuccessResetsFailureRun() {
	b := s.breaker(WithFailureThreshold(3))
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	s.False(b.IsOpen())
	b.RecordFailure()
	s.True(b.IsOpen())
}

func (s *BreakerSuite) TestClosesAfterSuccessRun() {
	b := s.breaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	usePrimary, change := b.RecordSuccess()
	s.False(usePrimary)
	s.False(change.Closed)

	// A failure in between restarts the success run.
	b.RecordFailure()
	b.RecordSuccess()
	s.True(b.IsOpen())

	usePrimary, change = b.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
	s.Equal(StateClosed, b.State())
}

func (s *BreakerSuite) TestAllowProbesAfterCooldown() {
	b := s.breaker(WithFailureThreshold(1), WithCooldown(time.Minute))
	b.RecordFailure()
	s.False(b.Allow())

	s.now = s.now.Add(59 * time.Second)
	s.False(b.Allow())

	s.now = s.now.Add(time.Second)
	s.True(b.Allow(), "half-open probe after cooldown")

	// A failed probe restarts the cooldown.
	b.RecordFailure()
	s.False(b.Allow())
}

func (s *BreakerSuite) TestReset() {
	b := s.breaker(WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
}
