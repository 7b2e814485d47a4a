package storage

import (
	"iter"
	"time"

	"github.com/yndnr/sfsb-go/pkg/clock"
)

// Filter yields the entries of s modified less than window ago. The
// sequence may be ranged any number of times; each pass re-lists the
// store against the clock's current time. Entries that could not be
// listed are skipped and file contents are never read.
func Filter(s Store, window time.Duration, clk clock.Clock) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		now := clk.Now()
		for e, err := range s.Entries() {
			if err != nil {
				continue
			}
			if now.Sub(e.ModTime) >= window {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
