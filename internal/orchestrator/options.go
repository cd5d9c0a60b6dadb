package orchestrator

import "time"

// DefaultMaxTurns bounds the intake conversation.
const DefaultMaxTurns = 10

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*options)

type options struct {
	maxTurns   int
	sequential bool
	now        func() time.Time
	emitter    *EventEmitter
}

func defaultOptions() options {
	return options{
		maxTurns: DefaultMaxTurns,
		now:      time.Now,
	}
}

// WithMaxTurns sets the number of user turns after which intake ends
// even if fields are still missing.
func WithMaxTurns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithSequential runs the tools of each wave one at a time.
func WithSequential() Option {
	return func(o *options) { o.sequential = true }
}

// WithClock sets the clock used for timestamps (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEmitter sets the event emitter.
func WithEmitter(e *EventEmitter) Option {
	return func(o *options) { o.emitter = e }
}
