package godb

import (
	"fmt"
	"log"
	"math"
)

// TableStats represents statistics (e.g., histograms) about base tables,
// used by the planner to estimate scan cost and predicate selectivity.

// Interface for statistics that are maintained for a table.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

type TableStats struct {
	basePages  int
	baseTups   int
	histograms map[string]any
	tupleDesc  *TupleDesc
}

// The default cost to read a page from disk. This value can be adjusted to
// accommodate different storage devices.
const CostPerPage = 1000

// Number of bins per column histogram.
const NumHistBins = 100

func tableMinMax(tid TransactionID, dbFile DBFile) ([]int64, []int64, error) {
	td := dbFile.Descriptor()
	mins := make([]int64, len(td.Fields))
	maxs := make([]int64, len(td.Fields))
	for i := range mins {
		mins[i] = math.MaxInt32
		maxs[i] = math.MinInt32
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, nil, err
	}
	for tup, err := iter(); tup != nil; tup, err = iter() {
		if err != nil {
			return nil, nil, err
		}

		for i, f := range td.Fields {
			if f.Ftype == IntType {
				v := tup.Fields[i].(IntField).Value
				mins[i] = min(mins[i], v)
				maxs[i] = max(maxs[i], v)
			}
		}
	}
	for i := range mins {
		if mins[i] > maxs[i] {
			mins[i] = 0
			maxs[i] = 0
		}
	}
	return mins, maxs, nil
}

// ComputeTableStats scans dbFile once, building a histogram per column for
// later selectivity estimation.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()
	defer bp.TransactionComplete(tid, true)

	td := dbFile.Descriptor()

	// Compute min/max for table fields
	mins, maxs, err := tableMinMax(tid, dbFile)
	if err != nil {
		return nil, err
	}

	// Create histograms using field min/max
	hists := make(map[string]any, len(td.Fields))
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			h, err := NewIntHistogram(NumHistBins, mins[i], maxs[i])
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		case StringType:
			h, err := NewStringHistogram()
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		case UnknownType:
			return nil, fmt.Errorf("unexpected unknown type")
		}
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}

	baseTups := 0
	for tup, err := iter(); tup != nil; tup, err = iter() {
		if err != nil {
			return nil, err
		}

		for i, f := range td.Fields {
			switch f.Ftype {
			case IntType:
				v := tup.Fields[i].(IntField).Value
				hists[f.Fname].(*IntHistogram).AddValue(v)
			case StringType:
				v := tup.Fields[i].(StringField).Value
				hists[f.Fname].(*StringHistogram).AddValue(v)
			case UnknownType:
				return nil, fmt.Errorf("unexpected unknown type")
			}
		}
		baseTups++
	}

	return &TableStats{dbFile.NumPages(), baseTups, hists, td}, nil
}

// EstimateScanCost estimates the cost of a full sequential scan, assuming
// no seeks and a cold buffer pool. Reads charge a full page even for a
// partially-filled last page, since storage can't address below page
// granularity.
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.basePages * CostPerPage)
}

// This method returns the number of tuples in the relation, given that a
// predicate with selectivity is applied.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(t.baseTups) * selectivity)
}

// Given a field name, boolean predicate, and a constant, look up the relevant
// histogram and estimate the selectivity of the filter.
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	hist, ok := t.histograms[field]
	if !ok {
		log.Printf("WARNING: no histogram found for field %s", field)
		return 1.0, nil
	}

	switch h := hist.(type) {
	case *IntHistogram:
		value, ok := value.(IntField)
		if !ok {
			return 1.0, fmt.Errorf("field '%s' is int, but value %v is not an IntField", field, value)
		}
		return h.EstimateSelectivity(op, value.Value), nil

	case *StringHistogram:
		value, ok := value.(StringField)
		if !ok {
			return 1.0, fmt.Errorf("field is string, but value is not a StringField")
		}
		return h.EstimateSelectivity(op, value.Value), nil
	}

	return 1.0, fmt.Errorf("unexpected histogram type")
}
