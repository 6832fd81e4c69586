package aggregator

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/celer-network/safe-storage-verifier/log"
)

// milestone rounds the share of [from, to] covered up to currTo down to 10%.
func milestone(from, to, currTo uint64) int {
	if to <= from {
		return 100
	}
	progress := (currTo - from) * 100 / (to - from)
	return int(progress / 10 * 10)
}

func newReporter(emit func(percent int)) ProgressFunc {
	seen := mapset.NewThreadUnsafeSet[int]()
	return func(from, to, currFrom, currTo uint64) {
		rounded := milestone(from, to, currTo)
		// a range fetched in one go reports nothing
		if rounded == 0 || (rounded == 100 && seen.Cardinality() == 0) || seen.Contains(rounded) {
			return
		}
		seen.Add(rounded)
		emit(rounded)
	}
}

// NewReporter returns a ProgressFunc logging each 10% step once. It must not be
// shared between concurrent fetches.
func NewReporter(logger *log.Logger) ProgressFunc {
	return newReporter(func(percent int) {
		logger.Info().Int("percent", percent).Msg("fetched")
	})
}
