package grid

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// inputRecord mirrors the tabular contract with the GIS preprocessing step.
// cell_id and inundated are optional: a missing cell_id falls back to row
// order, a missing inundated column marks the dataset unlabeled.
type inputRecord struct {
	ID               *int64  `csv:"cell_id"`
	Elevation        float64 `csv:"elevation"`
	Slope            float64 `csv:"slope"`
	FlowAccumulation float64 `csv:"flow_accumulation"`
	DistanceToRiver  float64 `csv:"distance_to_river"`
	Developed        float64 `csv:"developed"`
	Forest           float64 `csv:"forest"`
	Grassland        float64 `csv:"grassland"`
	Inundated        float64 `csv:"inundated"`
}

// scoredRecord is the output row for a scored target-city table.
type scoredRecord struct {
	ID                         int64   `csv:"cell_id"`
	Elevation                  float64 `csv:"elevation"`
	Slope                      float64 `csv:"slope"`
	FlowAccumulation           float64 `csv:"flow_accumulation"`
	DistanceToRiver            float64 `csv:"distance_to_river"`
	Developed                  float64 `csv:"developed"`
	Forest                     float64 `csv:"forest"`
	Grassland                  float64 `csv:"grassland"`
	NormalizedElevation        float64 `csv:"normalized_elevation"`
	NormalizedFlowAccumulation float64 `csv:"normalized_flow_accumulation"`
	Probability                float64 `csv:"predicted_probability"`
	Class                      bool    `csv:"predicted_class"`
	RiskQuantile               int     `csv:"risk_quantile"`
	RiskLabel                  string  `csv:"risk_label"`
}

// labeledScoredRecord adds the training-city-only columns.
type labeledScoredRecord struct {
	scoredRecord
	Inundated     float64 `csv:"inundated"`
	ConfusionType string  `csv:"confusion_type"`
}

// ReadCSV loads one city's grid-cell table. Rows whose predictor values are
// missing or non-numeric (cells outside the city boundary, typically) are
// dropped and counted; an empty inundated value is treated as 0 per the
// flood-overlay convention.
func ReadCSV(path, city string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "grid: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	d, err := readCSV(f, city)
	if err != nil {
		return nil, eris.Wrapf(err, "grid: read csv %s", path)
	}
	return d, nil
}

func readCSV(r io.Reader, city string) (*Dataset, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "decode header")
	}

	// Numeric fields that fail to parse ("", "NA", "NULL", stray text)
	// become NaN so the row-drop policy below can see them instead of the
	// decoder aborting the load. Same policy as dbfFloat.
	dec.Map = func(field, col string, v any) string {
		if _, ok := v.(float64); !ok {
			return field
		}
		if _, err := strconv.ParseFloat(field, 64); err != nil {
			return "NaN"
		}
		return field
	}

	header := map[string]bool{}
	for _, h := range dec.Header() {
		header[h] = true
	}
	for _, col := range PredictorColumns {
		if !header[col] {
			return nil, eris.Wrapf(ErrSchemaMismatch, "column %q missing from header", col)
		}
	}
	labeled := header[ColInundated]

	var cells []Cell
	var dropped int
	row := int64(0)
	for {
		var rec inputRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, eris.Wrap(err, "decode row")
		}
		row++

		c := Cell{
			ID:               row - 1,
			Elevation:        rec.Elevation,
			Slope:            rec.Slope,
			FlowAccumulation: rec.FlowAccumulation,
			DistanceToRiver:  rec.DistanceToRiver,
			Developed:        rec.Developed,
			Forest:           rec.Forest,
			Grassland:        rec.Grassland,
		}
		if rec.ID != nil {
			c.ID = *rec.ID
		}
		if labeled && !math.IsNaN(rec.Inundated) {
			c.Inundated = rec.Inundated
		}
		if !finite(&c) {
			dropped++
			continue
		}
		cells = append(cells, c)
	}

	if dropped > 0 {
		zap.L().Warn("dropped rows with missing predictors",
			zap.String("city", city),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(cells)),
		)
	}
	if len(cells) == 0 {
		return nil, eris.New("no usable rows")
	}

	columns := append([]string(nil), PredictorColumns...)
	if labeled {
		columns = append(columns, ColInundated)
	}
	return New(city, cells, columns), nil
}

// WriteScoredCSV writes the scored table for the rendering step. Labeled
// datasets additionally carry the observed label and confusion type.
func WriteScoredCSV(d *Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "grid: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := writeScoredCSV(d, f); err != nil {
		return eris.Wrapf(err, "grid: write scored csv %s", path)
	}
	return nil
}

func writeScoredCSV(d *Dataset, w io.Writer) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	for i := range d.Cells {
		c := &d.Cells[i]
		rec := scoredRecord{
			ID:                         c.ID,
			Elevation:                  c.Elevation,
			Slope:                      c.Slope,
			FlowAccumulation:           c.FlowAccumulation,
			DistanceToRiver:            c.DistanceToRiver,
			Developed:                  c.Developed,
			Forest:                     c.Forest,
			Grassland:                  c.Grassland,
			NormalizedElevation:        c.NormalizedElevation,
			NormalizedFlowAccumulation: c.NormalizedFlowAccumulation,
			Probability:                c.Probability,
			Class:                      c.Class,
			RiskQuantile:               c.RiskQuantile,
			RiskLabel:                  c.RiskLabel,
		}

		var err error
		if d.Labeled() {
			err = enc.Encode(labeledScoredRecord{
				scoredRecord:  rec,
				Inundated:     c.Inundated,
				ConfusionType: c.ConfusionType,
			})
		} else {
			err = enc.Encode(rec)
		}
		if err != nil {
			return eris.Wrap(err, "encode row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "flush")
}
