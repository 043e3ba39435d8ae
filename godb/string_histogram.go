package godb

import (
	"github.com/tylertreat/BoomFilters"
)

// StringHistogram estimates selectivity over a string field using a
// count-min sketch rather than fixed-width buckets, since string values
// have no natural total order to bucket by range.
type StringHistogram struct {
	cms *boom.CountMinSketch
}

// NewStringHistogram returns an empty StringHistogram.
func NewStringHistogram() (*StringHistogram, error) {
	cms := boom.NewCountMinSketch(0.001, 0.999)
	return &StringHistogram{cms}, nil
}

func (h *StringHistogram) AddValue(s string) {
	h.cms.Add([]byte(s))
}

func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	return float64(h.cms.Count([]byte(s))) / float64(h.cms.TotalCount())
}
