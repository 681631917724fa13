package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/roster-notify/pkg/core/model"
)

// Fetcher returns the raw roster text for a date, ErrNotReady when the portal has
// not finalised it, or any other error when the portal could not be read
type Fetcher interface {
	FetchRoster(ctx context.Context, date time.Time) (string, error)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// State is the controller state for a single date
type State int

const (
	StatePending State = iota
	StateFinal
	StateGaveUp
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFinal:
		return "final"
	case StateGaveUp:
		return "gave_up"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type outcome int

const (
	outcomeFinal outcome = iota
	outcomeNotReady
	outcomeFetchError
)

// progress is the controller's state plus its counters
type progress struct {
	state       State
	attempts    int
	fetchErrors int // consecutive
}

// RetryConfig bounds the retry loop
type RetryConfig struct {
	MaxAttempts       int
	Backoff           time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	MaxFetchErrors    int
}

// DefaultRetryConfig polls once a minute for up to two hours
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       120,
		Backoff:           60 * time.Second,
		BackoffMultiplier: 1,
		MaxFetchErrors:    3,
	}
}

// notFinalisedMarkers are the portal texts shown in place of a provisional roster
var notFinalisedMarkers = []string{"not finalised", "not finalized"}

// IsFinal reports whether raw roster text is free of "not finalised" markers
func IsFinal(raw string) bool {
	lower := strings.ToLower(raw)
	for _, marker := range notFinalisedMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// Controller polls the portal until a date's roster is final. A Controller serves one
// run: every date it is asked for draws on the same MaxAttempts, so a weekend run waits
// for one window in total rather than one per day.
type Controller struct {
	fetcher Fetcher
	parser  Parser
	cfg     RetryConfig
	sleep   Sleeper
	logger  *zap.Logger
	used    int // attempts spent by earlier dates
}

// NewController creates a controller. Non-positive MaxAttempts and MaxFetchErrors fall
// back to DefaultRetryConfig; a zero Backoff retries immediately.
func NewController(fetcher Fetcher, parser Parser, cfg RetryConfig, logger *zap.Logger) *Controller {
	defaults := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if cfg.MaxFetchErrors <= 0 {
		cfg.MaxFetchErrors = defaults.MaxFetchErrors
	}

	return &Controller{
		fetcher: fetcher,
		parser:  parser,
		cfg:     cfg,
		sleep:   SleepContext,
		logger:  logger,
	}
}

// AttemptsUsed is the number of fetches spent so far across all dates
func (c *Controller) AttemptsUsed() int {
	return c.used
}

// WithSleeper replaces the wait between attempts, mainly for tests
func (c *Controller) WithSleeper(sleep Sleeper) *Controller {
	c.sleep = sleep
	return c
}

// ObtainFinalRoster fetches the roster for date until it is final, then parses it.
// Returns GiveUpError when attempts run out while the roster is still provisional,
// FetchError when the portal keeps failing, and ParseError for unrecognised content.
// A date always gets at least one fetch, even when earlier dates spent the budget.
func (c *Controller) ObtainFinalRoster(ctx context.Context, date time.Time) ([]model.RosterEntry, error) {
	dateStr := date.Format("2006-01-02")
	p := progress{state: StatePending, attempts: c.used}
	defer func() { c.used = p.attempts }()

	var raw string
	var lastErr error

	for p.state == StatePending {
		var err error
		raw, err = c.fetcher.FetchRoster(ctx, date)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetching roster for %s cancelled: %w", dateStr, ctxErr)
		}

		var o outcome
		switch {
		case errors.Is(err, ErrNotReady):
			o = outcomeNotReady
			lastErr = err
		case err != nil:
			o = outcomeFetchError
			lastErr = &FetchError{Date: date, Attempt: p.attempts + 1, Err: err}
		case !IsFinal(raw):
			o = outcomeNotReady
			lastErr = ErrNotReady
		default:
			o = outcomeFinal
			lastErr = nil
		}

		p = c.next(p, o)

		fields := []zap.Field{
			zap.String("date", dateStr),
			zap.Int("attempt", p.attempts),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Stringer("state", p.state),
		}
		if lastErr != nil {
			fields = append(fields, zap.String("error_kind", ErrorKind(lastErr)), zap.Error(lastErr))
		}

		switch o {
		case outcomeNotReady:
			c.logger.Warn("SHIFT_NOT_FINALISED", fields...)
		case outcomeFetchError:
			c.logger.Error("Roster fetch failed", fields...)
		default:
			c.logger.Debug("Roster fetched", fields...)
		}

		if p.state != StatePending {
			break
		}

		delay := c.delay(p.attempts - c.used)
		c.logger.Info("Waiting before next roster fetch",
			zap.String("date", dateStr),
			zap.Int("retry", p.attempts),
			zap.Duration("delay", delay))
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("waiting to refetch roster for %s: %w", dateStr, err)
		}
	}

	switch p.state {
	case StateGaveUp:
		// The last date of a spent budget still gets its one fetch
		return nil, &GiveUpError{Date: date, Attempts: min(p.attempts, c.cfg.MaxAttempts)}
	case StateFailed:
		return nil, lastErr
	}

	result, err := c.parser.Parse(raw, date)
	if err != nil {
		return nil, err
	}
	if result.Dropped > 0 {
		c.logger.Warn("Dropped malformed roster rows",
			zap.String("date", dateStr),
			zap.Int("dropped", result.Dropped))
	}

	return result.Entries, nil
}

// next applies one fetch outcome to the controller state
func (c *Controller) next(p progress, o outcome) progress {
	if p.state != StatePending {
		return p
	}

	p.attempts++
	switch o {
	case outcomeFinal:
		p.fetchErrors = 0
		p.state = StateFinal
	case outcomeNotReady:
		p.fetchErrors = 0
		if p.attempts >= c.cfg.MaxAttempts {
			p.state = StateGaveUp
		}
	case outcomeFetchError:
		p.fetchErrors++
		if p.fetchErrors >= c.cfg.MaxFetchErrors || p.attempts >= c.cfg.MaxAttempts {
			p.state = StateFailed
		}
	}
	return p
}

// delay returns the wait after the given attempt number (1-based)
func (c *Controller) delay(attempt int) time.Duration {
	d := float64(c.cfg.Backoff)
	for i := 1; i < attempt; i++ {
		d *= c.cfg.BackoffMultiplier
		if c.cfg.MaxBackoff > 0 && d >= float64(c.cfg.MaxBackoff) {
			return c.cfg.MaxBackoff
		}
	}
	if c.cfg.MaxBackoff > 0 && d > float64(c.cfg.MaxBackoff) {
		return c.cfg.MaxBackoff
	}
	return time.Duration(d)
}

// SleepContext waits for d, returning early with ctx.Err() when ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
