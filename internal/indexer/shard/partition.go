// Package shard splits a corpus into contiguous ranges so a build can run
// one worker per range and merge the partial results in order.
package shard

// Range is a half-open interval [Start, End) of document offsets.
type Range struct {
	ID    int
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Partition divides n documents into at most numShards contiguous ranges of
// near-equal size. Earlier ranges take the remainder. It returns no ranges
// when n is 0.
func Partition(n, numShards int) []Range {
	if n <= 0 {
		return nil
	}
	if numShards <= 0 {
		numShards = 1
	}
	if numShards > n {
		numShards = n
	}
	size, rem := n/numShards, n%numShards
	ranges := make([]Range, 0, numShards)
	start := 0
	for i := 0; i < numShards; i++ {
		end := start + size
		if i < rem {
			end++
		}
		ranges = append(ranges, Range{ID: i, Start: start, End: end})
		start = end
	}
	return ranges
}
