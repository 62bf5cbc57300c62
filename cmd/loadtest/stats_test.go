package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	var sorted []time.Duration
	for i := 1; i <= 100; i++ {
		sorted = append(sorted, time.Duration(i)*time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Equal(t, time.Millisecond, percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestSummarize(t *testing.T) {
	s := NewStats()
	s.RecordRequest("any", 10*time.Millisecond, 200, false, nil)
	s.RecordRequest("any", 30*time.Millisecond, 200, true, nil)
	s.RecordRequest("all", 20*time.Millisecond, 503, false, nil)
	s.RecordRequest("exact", 0, 0, false, errors.New("refused"))
	s.RecordRequest("exact", 40*time.Millisecond, 0, true, nil)

	sum := s.Summarize(time.Second)
	assert.EqualValues(t, 5, sum.Total)
	assert.EqualValues(t, 3, sum.Success)
	assert.EqualValues(t, 2, sum.Errors)
	assert.EqualValues(t, 2, sum.CacheHits)
	assert.Equal(t, 5.0, sum.RPS)
	assert.Equal(t, 10*time.Millisecond, sum.Min)
	assert.Equal(t, 40*time.Millisecond, sum.Max)
	assert.Equal(t, 25*time.Millisecond, sum.Avg)
	assert.Equal(t, [][]string{{"200", "2"}, {"503", "1"}}, sum.StatusCodes)
	assert.Equal(t, [][]string{{"all", "1"}, {"any", "2"}, {"exact", "2"}}, sum.SearchTypes)
}
