package godb

import (
	"fmt"
)

// IntHistogram is a fixed set of equal-width bins over [min, max], used to
// estimate the selectivity of a comparison against an int column without
// scanning the table.
type IntHistogram struct {
	buckets  []int64
	min, max int64
	width    float64
	ntups    int64
}

// NewIntHistogram creates a new IntHistogram with the specified number of bins.
//
// Min and max specify the range of values that the histogram will cover
// (inclusive).
func NewIntHistogram(nBins int64, vMin int64, vMax int64) (*IntHistogram, error) {
	if nBins <= 0 {
		return nil, fmt.Errorf("NewIntHistogram: nBins must be positive, got %d", nBins)
	}
	if vMax < vMin {
		return nil, fmt.Errorf("NewIntHistogram: max %d is less than min %d", vMax, vMin)
	}
	width := float64(vMax-vMin+1) / float64(nBins)
	if width < 1 {
		width = 1
	}
	return &IntHistogram{
		buckets: make([]int64, nBins),
		min:     vMin,
		max:     vMax,
		width:   width,
	}, nil
}

func (h *IntHistogram) bucketFor(v int64) int {
	if v <= h.min {
		return 0
	}
	if v >= h.max {
		return len(h.buckets) - 1
	}
	idx := int(float64(v-h.min) / h.width)
	if idx >= len(h.buckets) {
		idx = len(h.buckets) - 1
	}
	return idx
}

// AddValue adds a value v to the histogram.
func (h *IntHistogram) AddValue(v int64) {
	if v < h.min || v > h.max {
		return
	}
	h.buckets[h.bucketFor(v)]++
	h.ntups++
}

// EstimateSelectivity estimates the selectivity of a predicate and operand on
// the values represented by this histogram.
//
// For example, if op is OpLt and v is 10, return the fraction of values that
// are less than 10.
func (h *IntHistogram) EstimateSelectivity(op BoolOp, v int64) float64 {
	if h.ntups == 0 {
		return 0.0
	}

	switch op {
	case OpEq:
		return h.bucketFraction(h.bucketFor(v)) / h.width
	case OpNeq:
		return 1.0 - h.bucketFraction(h.bucketFor(v))/h.width
	case OpGt:
		return 1.0 - h.estimateLessEqual(v)
	case OpGe:
		return 1.0 - h.estimateLessEqual(v-1)
	case OpLt:
		return h.estimateLessEqual(v - 1)
	case OpLe:
		return h.estimateLessEqual(v)
	}
	return 1.0
}

func (h *IntHistogram) bucketFraction(idx int) float64 {
	return float64(h.buckets[idx]) / float64(h.ntups)
}

// estimateLessEqual returns the fraction of values <= v.
func (h *IntHistogram) estimateLessEqual(v int64) float64 {
	if v < h.min {
		return 0.0
	}
	if v >= h.max {
		return 1.0
	}
	full := h.bucketFor(v)
	frac := 0.0
	for i := 0; i < full; i++ {
		frac += h.bucketFraction(i)
	}

	bucketStart := h.min + int64(float64(full)*h.width)
	within := float64(v-bucketStart+1) / h.width
	if within > 1 {
		within = 1
	}
	if within < 0 {
		within = 0
	}
	frac += h.bucketFraction(full) * within
	return frac
}
