package replog

import (
	"fmt"
	"os"
)

// Opt adjusts how a Replay behaves.
type Opt func(*Replay)

// WithErrorReporter redirects non-fatal diagnostics (truncated field
// lists, records sent to a dead worker). The default reporter writes
// to stderr.
func WithErrorReporter(report func(error)) Opt {
	return func(r *Replay) {
		r.report = report
	}
}

// WithSpeed scales replay pacing. 1 replays on the recorded schedule,
// 2 replays twice as fast, and 0 disables pacing entirely so records
// dispatch as fast as the workers can drain them.
func WithSpeed(speed float64) Opt {
	return func(r *Replay) {
		r.speed = speed
	}
}

func defaultReporter(err error) {
	fmt.Fprintf(os.Stderr, "replog: %+v\n", err)
}
