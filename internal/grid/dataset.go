// Package grid models per-cell flood predictor tables and the transforms
// applied to them before model fitting: per-city feature normalization and
// seeded train/test splitting. A Dataset holds one city's grid cells; the
// raw predictor columns come from the upstream GIS preprocessing step, the
// derived columns are appended here and by the model.
package grid

import (
	"math"

	"github.com/rotisserie/eris"
)

// Column names for the tabular interface with the GIS preprocessing step
// and the downstream rendering step.
const (
	ColCellID           = "cell_id"
	ColElevation        = "elevation"
	ColSlope            = "slope"
	ColFlowAccumulation = "flow_accumulation"
	ColDistanceToRiver  = "distance_to_river"
	ColDeveloped        = "developed"
	ColForest           = "forest"
	ColGrassland        = "grassland"
	ColInundated        = "inundated"

	ColNormalizedElevation = "normalized_elevation"
	ColNormalizedFlowAccum = "normalized_flow_accumulation"
	ColProbability         = "predicted_probability"
)

// PredictorColumns are the raw columns every city table must supply.
var PredictorColumns = []string{
	ColElevation,
	ColSlope,
	ColFlowAccumulation,
	ColDistanceToRiver,
	ColDeveloped,
	ColForest,
	ColGrassland,
}

// Cell is one grid cell. Raw predictors are filled at load time; the
// remaining fields are appended by the normalizer, the model, and the risk
// classifier.
type Cell struct {
	ID               int64
	Elevation        float64 // meters, raw
	Slope            float64 // percent
	FlowAccumulation float64 // upstream-area count, unbounded
	DistanceToRiver  float64 // meters
	Developed        float64 // land-cover membership fractions, sum <= 1
	Forest           float64
	Grassland        float64

	// Inundated is the training-city label. Cells outside the flood-extent
	// raster carry 0 by convention; whether the column existed at all is
	// tracked on the Dataset.
	Inundated float64

	NormalizedElevation        float64
	NormalizedFlowAccumulation float64

	Probability   float64
	Class         bool
	RiskQuantile  int
	RiskLabel     string
	ConfusionType string
}

// Dataset is one city's grid-cell table. It is immutable after load except
// for derived columns appended through SetDerived and the risk fields
// written by the classifier.
type Dataset struct {
	City  string
	Cells []Cell

	columns map[string]bool
}

// New builds a Dataset over cells, recording which columns the source table
// actually carried.
func New(city string, cells []Cell, columns []string) *Dataset {
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	return &Dataset{City: city, Cells: cells, columns: cols}
}

// Len returns the number of cells.
func (d *Dataset) Len() int { return len(d.Cells) }

// Has reports whether the named column is present, either from the source
// table or appended as a derived column.
func (d *Dataset) Has(column string) bool { return d.columns[column] }

// Labeled reports whether the source table carried the inundation label.
func (d *Dataset) Labeled() bool { return d.columns[ColInundated] }

// Columns returns the present column names. Order is unspecified.
func (d *Dataset) Columns() []string {
	out := make([]string, 0, len(d.columns))
	for c := range d.columns {
		out = append(out, c)
	}
	return out
}

// getters maps numeric column names to cell accessors.
var getters = map[string]func(*Cell) float64{
	ColElevation:           func(c *Cell) float64 { return c.Elevation },
	ColSlope:               func(c *Cell) float64 { return c.Slope },
	ColFlowAccumulation:    func(c *Cell) float64 { return c.FlowAccumulation },
	ColDistanceToRiver:     func(c *Cell) float64 { return c.DistanceToRiver },
	ColDeveloped:           func(c *Cell) float64 { return c.Developed },
	ColForest:              func(c *Cell) float64 { return c.Forest },
	ColGrassland:           func(c *Cell) float64 { return c.Grassland },
	ColInundated:           func(c *Cell) float64 { return c.Inundated },
	ColNormalizedElevation: func(c *Cell) float64 { return c.NormalizedElevation },
	ColNormalizedFlowAccum: func(c *Cell) float64 { return c.NormalizedFlowAccumulation },
	ColProbability:         func(c *Cell) float64 { return c.Probability },
}

// setters maps derived column names to cell mutators. Raw predictor columns
// are deliberately absent: source fields are never overwritten.
var setters = map[string]func(*Cell, float64){
	ColNormalizedElevation: func(c *Cell, v float64) { c.NormalizedElevation = v },
	ColNormalizedFlowAccum: func(c *Cell, v float64) { c.NormalizedFlowAccumulation = v },
	ColProbability:         func(c *Cell, v float64) { c.Probability = v },
}

// Values returns the column as a slice, one value per cell in input order.
// Returns ErrSchemaMismatch when the column is absent or non-numeric.
func (d *Dataset) Values(column string) ([]float64, error) {
	get, ok := getters[column]
	if !ok {
		return nil, eris.Wrapf(ErrSchemaMismatch, "grid: unknown column %q", column)
	}
	if !d.columns[column] {
		return nil, eris.Wrapf(ErrSchemaMismatch, "grid: column %q absent from %s dataset", column, d.City)
	}
	out := make([]float64, len(d.Cells))
	for i := range d.Cells {
		out[i] = get(&d.Cells[i])
	}
	return out, nil
}

// Labels returns the inundation label column.
func (d *Dataset) Labels() ([]float64, error) {
	return d.Values(ColInundated)
}

// SetDerived appends (or overwrites) a derived column with one value per
// cell. Only derived columns are settable.
func (d *Dataset) SetDerived(column string, values []float64) error {
	set, ok := setters[column]
	if !ok {
		return eris.Errorf("grid: column %q is not derived", column)
	}
	if len(values) != len(d.Cells) {
		return eris.Errorf("grid: %d values for %d cells", len(values), len(d.Cells))
	}
	for i := range d.Cells {
		set(&d.Cells[i], values[i])
	}
	d.columns[column] = true
	return nil
}

// Subset returns a new Dataset holding copies of the cells at the given
// indices, preserving the column set and input order of the indices.
func (d *Dataset) Subset(indices []int) *Dataset {
	cells := make([]Cell, len(indices))
	for i, idx := range indices {
		cells[i] = d.Cells[idx]
	}
	cols := make(map[string]bool, len(d.columns))
	for c := range d.columns {
		cols[c] = true
	}
	return &Dataset{City: d.City, Cells: cells, columns: cols}
}

// finite reports whether every raw predictor on the cell is a finite number.
func finite(c *Cell) bool {
	for _, col := range PredictorColumns {
		v := getters[col](c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
