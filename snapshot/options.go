package snapshot

const defaultConcurrency = 8

type config struct {
	concurrency       int
	ignoreCheckpoints bool
}

// Option is an option for the reconstructor.
type Option func(*config)

// WithConcurrency sets the number of log entries fetched in parallel.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithoutCheckpoints makes the reconstructor replay the log from version 0,
// ignoring any checkpoints. This is used to verify checkpoints against the
// log.
func WithoutCheckpoints() Option {
	return func(c *config) {
		c.ignoreCheckpoints = true
	}
}
