package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

var sunday = saturday.AddDate(0, 0, 1)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubFetcher returns results in order, repeating the last one when exhausted
type stubFetcher struct {
	results []fetchResult
	calls   int
}

type fetchResult struct {
	raw string
	err error
}

func (f *stubFetcher) FetchRoster(ctx context.Context, date time.Time) (string, error) {
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].raw, f.results[i].err
}

// notReadyThen returns a fetcher that reports ErrNotReady n-1 times and then the final roster
func notReadyThen(n int, final string) *stubFetcher {
	f := &stubFetcher{}
	for i := 0; i < n-1; i++ {
		f.results = append(f.results, fetchResult{err: ErrNotReady})
	}
	f.results = append(f.results, fetchResult{raw: final})
	return f
}

// recordingSleeper records requested delays without waiting
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestController(f Fetcher, cfg RetryConfig) (*Controller, *recordingSleeper) {
	s := &recordingSleeper{}
	c := NewController(f, Parser{Signature: DefaultSignature}, cfg, zap.NewNop()).WithSleeper(s.sleep)
	return c, s
}

func TestObtainFinalRoster_ReadyFirstTime(t *testing.T) {
	f := notReadyThen(1, "12345\tD0600-1400 (8)")
	c, s := newTestController(f, RetryConfig{MaxAttempts: 3, Backoff: time.Minute})

	entries, err := c.ObtainFinalRoster(context.Background(), saturday)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12345", entries[0].PersonID)
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, s.delays)
}

func TestObtainFinalRoster_SucceedsWhenAttemptsCoverWait(t *testing.T) {
	const n = 5
	for _, maxAttempts := range []int{n, n + 1, 50} {
		f := notReadyThen(n, "12345\tE1400-2200 (8)")
		c, s := newTestController(f, RetryConfig{MaxAttempts: maxAttempts, Backoff: time.Minute})

		entries, err := c.ObtainFinalRoster(context.Background(), saturday)

		require.NoError(t, err, "max attempts %d", maxAttempts)
		require.Len(t, entries, 1)
		assert.Equal(t, n, f.calls)
		assert.Len(t, s.delays, n-1)
	}
}

func TestObtainFinalRoster_GivesUpWhenAttemptsTooFew(t *testing.T) {
	const n = 5
	for _, maxAttempts := range []int{1, n - 1} {
		f := notReadyThen(n, "12345\tE1400-2200 (8)")
		c, _ := newTestController(f, RetryConfig{MaxAttempts: maxAttempts, Backoff: time.Minute})

		entries, err := c.ObtainFinalRoster(context.Background(), saturday)

		assert.Nil(t, entries)
		var giveUp *GiveUpError
		require.True(t, errors.As(err, &giveUp), "max attempts %d: %v", maxAttempts, err)
		assert.Equal(t, maxAttempts, giveUp.Attempts)
		assert.Equal(t, saturday, giveUp.Date)
		assert.Equal(t, maxAttempts, f.calls)
	}
}

func TestObtainFinalRoster_DatesShareOneBudget(t *testing.T) {
	// Saturday is final on the third fetch; Sunday stays provisional
	f := &stubFetcher{results: []fetchResult{
		{err: ErrNotReady},
		{err: ErrNotReady},
		{raw: "12345\tD0600-1400 (8)"},
		{err: ErrNotReady},
	}}
	c, s := newTestController(f, RetryConfig{MaxAttempts: 5, Backoff: time.Minute})

	entries, err := c.ObtainFinalRoster(context.Background(), saturday)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, c.AttemptsUsed())

	_, err = c.ObtainFinalRoster(context.Background(), sunday)
	var giveUp *GiveUpError
	require.ErrorAs(t, err, &giveUp)
	assert.Equal(t, sunday, giveUp.Date)
	assert.Equal(t, 5, giveUp.Attempts)
	assert.Equal(t, 5, f.calls, "sunday only gets the two attempts saturday left over")
	assert.Equal(t, []time.Duration{time.Minute, time.Minute, time.Minute}, s.delays)
}

func TestObtainFinalRoster_SpentBudgetStillFetchesOnce(t *testing.T) {
	f := notReadyThen(2, "12345\tD0600-1400 (8)")
	c, _ := newTestController(f, RetryConfig{MaxAttempts: 2, Backoff: time.Minute})

	_, err := c.ObtainFinalRoster(context.Background(), saturday)
	require.NoError(t, err)

	_, err = c.ObtainFinalRoster(context.Background(), sunday)
	require.NoError(t, err, "the final roster is returned even with no retries left")
	assert.Equal(t, 3, f.calls)

	f.results = []fetchResult{{err: ErrNotReady}}
	_, err = c.ObtainFinalRoster(context.Background(), sunday)
	var giveUp *GiveUpError
	require.ErrorAs(t, err, &giveUp)
	assert.Equal(t, 2, giveUp.Attempts, "reports the configured limit")
}

func TestObtainFinalRoster_MarkerInTextIsNotReady(t *testing.T) {
	f := &stubFetcher{results: []fetchResult{
		{raw: "12345\tRoster Not Finalised"},
		{raw: "12345\tnot finalized"},
		{raw: "12345\tD0600-1400 (8)"},
	}}
	c, s := newTestController(f, RetryConfig{MaxAttempts: 10, Backoff: time.Second})

	entries, err := c.ObtainFinalRoster(context.Background(), saturday)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, s.delays)
}

func TestObtainFinalRoster_FetchErrorsRetriedThenFail(t *testing.T) {
	portalDown := errors.New("connection refused")
	f := &stubFetcher{results: []fetchResult{{err: portalDown}}}
	c, s := newTestController(f, RetryConfig{MaxAttempts: 10, Backoff: time.Second, MaxFetchErrors: 3})

	_, err := c.ObtainFinalRoster(context.Background(), saturday)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.ErrorIs(t, err, portalDown)
	assert.Equal(t, 3, fetchErr.Attempt)
	assert.Equal(t, 3, f.calls)
	assert.Len(t, s.delays, 2)

	var giveUp *GiveUpError
	assert.False(t, errors.As(err, &giveUp), "fetch failures are not a give-up")
}

func TestObtainFinalRoster_FetchErrorCounterResetsOnProgress(t *testing.T) {
	flaky := errors.New("timeout")
	f := &stubFetcher{results: []fetchResult{
		{err: flaky},
		{err: flaky},
		{err: ErrNotReady},
		{err: flaky},
		{err: flaky},
		{raw: "12345\tN2200-0600 (8)"},
	}}
	c, _ := newTestController(f, RetryConfig{MaxAttempts: 10, Backoff: time.Second, MaxFetchErrors: 3})

	entries, err := c.ObtainFinalRoster(context.Background(), saturday)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 6, f.calls)
}

func TestObtainFinalRoster_ParseErrorIsTerminal(t *testing.T) {
	f := notReadyThen(1, "<html>unexpected page</html>")
	c, _ := newTestController(f, RetryConfig{MaxAttempts: 5})

	_, err := c.ObtainFinalRoster(context.Background(), saturday)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, f.calls)
}

func TestObtainFinalRoster_CancelledWhileWaiting(t *testing.T) {
	f := notReadyThen(10, "12345\tD0600-1400 (8)")
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(f, Parser{}, RetryConfig{MaxAttempts: 10, Backoff: time.Hour}, zap.NewNop()).
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return SleepContext(ctx, d)
		})

	_, err := c.ObtainFinalRoster(ctx, saturday)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.calls)
}

func TestControllerNext_StateMachine(t *testing.T) {
	c := NewController(nil, Parser{}, RetryConfig{MaxAttempts: 3, MaxFetchErrors: 2}, zap.NewNop())

	p := progress{state: StatePending}
	p = c.next(p, outcomeNotReady)
	assert.Equal(t, StatePending, p.state)
	assert.Equal(t, 1, p.attempts)

	p = c.next(p, outcomeFetchError)
	assert.Equal(t, StatePending, p.state)
	assert.Equal(t, 1, p.fetchErrors)

	p = c.next(p, outcomeNotReady)
	assert.Equal(t, StateGaveUp, p.state)
	assert.Equal(t, 0, p.fetchErrors)

	// terminal states absorb further outcomes
	p = c.next(p, outcomeFinal)
	assert.Equal(t, StateGaveUp, p.state)
	assert.Equal(t, 3, p.attempts)

	p = c.next(progress{state: StatePending}, outcomeFetchError)
	p = c.next(p, outcomeFetchError)
	assert.Equal(t, StateFailed, p.state)

	p = c.next(progress{state: StatePending}, outcomeFinal)
	assert.Equal(t, StateFinal, p.state)
}

func TestControllerDelay(t *testing.T) {
	fixed := NewController(nil, Parser{}, RetryConfig{Backoff: time.Minute}, zap.NewNop())
	assert.Equal(t, time.Minute, fixed.delay(1))
	assert.Equal(t, time.Minute, fixed.delay(30))

	growing := NewController(nil, Parser{}, RetryConfig{
		Backoff:           10 * time.Second,
		BackoffMultiplier: 2,
		MaxBackoff:        time.Minute,
	}, zap.NewNop())
	assert.Equal(t, 10*time.Second, growing.delay(1))
	assert.Equal(t, 20*time.Second, growing.delay(2))
	assert.Equal(t, 40*time.Second, growing.delay(3))
	assert.Equal(t, time.Minute, growing.delay(4))
	assert.Equal(t, time.Minute, growing.delay(100))
}

func TestNewController_Defaults(t *testing.T) {
	c := NewController(nil, Parser{}, RetryConfig{}, zap.NewNop())

	assert.Equal(t, 120, c.cfg.MaxAttempts)
	assert.Equal(t, 3, c.cfg.MaxFetchErrors)
	assert.Equal(t, 1.0, c.cfg.BackoffMultiplier)
}

func TestIsFinal(t *testing.T) {
	assert.True(t, IsFinal("12345\tD0600-1400 (8)"))
	assert.True(t, IsFinal(""))
	assert.False(t, IsFinal("12345\tNOT FINALISED"))
	assert.False(t, IsFinal("12345\tD0600-1400 (8)\n67890\tRoster not finalized"))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "not_finalised", ErrorKind(ErrNotReady))
	assert.Equal(t, "give_up", ErrorKind(&GiveUpError{}))
	assert.Equal(t, "parse", ErrorKind(&ParseError{}))
	assert.Equal(t, "fetch", ErrorKind(&FetchError{Err: errors.New("x")}))
	assert.Equal(t, "unexpected", ErrorKind(errors.New("boom")))
}
