package watcher

import "fmt"

// HeightRange represents an inclusive block-height range.
type HeightRange struct {
	From uint64
	To   uint64
}

// SplitRange splits a height range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]HeightRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to height must be >= from height")
	}

	ranges := make([]HeightRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, HeightRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
