package authlockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"incorp/pkg/requestcontext"
)

type InMemoryAuthLockoutStoreSuite struct {
	suite.Suite
	store *InMemoryAuthLockoutStore
	start time.Time
}

func TestInMemoryAuthLockoutStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryAuthLockoutStoreSuite))
}

func (s *InMemoryAuthLockoutStoreSuite) SetupTest() {
	s.store = New()
	s.start = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryAuthLockoutStoreSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.start.Add(offset))
}

func (s *InMemoryAuthLockoutStoreSuite) TestGet() {
	s.Run("missing identifier returns nil without error", func() {
		rec, err := s.store.Get(context.Background(), "unknown")
		s.NoError(err)
		s.Nil(rec)
	})

	s.Run("returned record is a copy", func() {
		_, err := s.store.RecordFailure(s.at(0), "copy", time.Minute)
		s.Require().NoError(err)

		rec, err := s.store.Get(context.Background(), "copy")
		s.Require().NoError(err)
		rec.FailureCount = 99

		again, err := s.store.Get(context.Background(), "copy")
		s.Require().NoError(err)
		s.Equal(1, again.FailureCount)
	})
}

func (s *InMemoryAuthLockoutStoreSuite) TestRecordFailure() {
	s.Run("failures inside the window accumulate", func() {
		first, err := s.store.RecordFailure(s.at(0), "ada", 15*time.Minute)
		s.Require().NoError(err)
		s.Equal(1, first.FailureCount)
		s.Equal(s.start, first.FirstFailureAt)

		second, err := s.store.RecordFailure(s.at(time.Minute), "ada", 15*time.Minute)
		s.Require().NoError(err)
		s.Equal(2, second.FailureCount)
		s.Equal(s.start, second.FirstFailureAt)
		s.Equal(s.start.Add(time.Minute), second.LastFailureAt)
	})

	s.Run("a failure after the window starts over", func() {
		_, err := s.store.RecordFailure(s.at(0), "lin", 15*time.Minute)
		s.Require().NoError(err)

		rec, err := s.store.RecordFailure(s.at(15*time.Minute), "lin", 15*time.Minute)
		s.Require().NoError(err)
		s.Equal(1, rec.FailureCount)
		s.Equal(s.start.Add(15*time.Minute), rec.FirstFailureAt)
	})

	s.Run("an expired lock starts over", func() {
		_, err := s.store.RecordFailure(s.at(0), "max", time.Hour)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Lock(context.Background(), "max", s.start.Add(time.Minute)))

		rec, err := s.store.RecordFailure(s.at(2*time.Minute), "max", time.Hour)
		s.Require().NoError(err)
		s.Equal(1, rec.FailureCount)
		s.Nil(rec.LockedUntil)
	})
}

func (s *InMemoryAuthLockoutStoreSuite) TestLockAndClear() {
	until := s.start.Add(15 * time.Minute)
	s.Require().NoError(s.store.Lock(context.Background(), "eve", until))

	rec, err := s.store.Get(context.Background(), "eve")
	s.Require().NoError(err)
	s.Require().NotNil(rec.LockedUntil)
	s.True(rec.IsLockedAt(s.start))

	s.Require().NoError(s.store.Clear(context.Background(), "eve"))
	rec, err = s.store.Get(context.Background(), "eve")
	s.NoError(err)
	s.Nil(rec)

	s.NoError(s.store.Clear(context.Background(), "never-existed"))
}
