package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		shards int
		want   []Range
	}{
		{"empty", 0, 4, nil},
		{"even", 4, 2, []Range{{0, 0, 2}, {1, 2, 4}}},
		{"remainder to first", 5, 2, []Range{{0, 0, 3}, {1, 3, 5}}},
		{"more shards than docs", 2, 8, []Range{{0, 0, 1}, {1, 1, 2}}},
		{"non positive shards", 3, 0, []Range{{0, 0, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Partition(tt.n, tt.shards))
		})
	}
}

func TestPartitionCoversEveryDocument(t *testing.T) {
	for n := 1; n < 50; n++ {
		for shards := 1; shards < 10; shards++ {
			ranges := Partition(n, shards)
			next := 0
			for _, r := range ranges {
				assert.Equal(t, next, r.Start)
				assert.Positive(t, r.Len())
				next = r.End
			}
			assert.Equal(t, n, next)
		}
	}
}
