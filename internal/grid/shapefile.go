package grid

import (
	"math"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReadShapefile loads a city's grid cells from a fishnet shapefile's
// attribute table. Only the DBF attributes are read; the geometry itself
// belongs to the GIS preprocessing step and is never touched here. Column
// requirements and the missing-value policy match ReadCSV.
func ReadShapefile(path, city string) (*Dataset, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "grid: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Field name -> index map. DBF names are padded with NULs and often
	// upper-cased or truncated to 10 chars.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idx := make(map[string]int, len(PredictorColumns))
	for _, col := range PredictorColumns {
		i, ok := lookupDBF(fieldIdx, col)
		if !ok {
			return nil, eris.Wrapf(ErrSchemaMismatch, "grid: shapefile %s: attribute %q missing", path, col)
		}
		idx[col] = i
	}
	idIdx, hasID := lookupDBF(fieldIdx, ColCellID)
	labelIdx, labeled := lookupDBF(fieldIdx, ColInundated)

	var cells []Cell
	var dropped int
	row := int64(0)
	for reader.Next() {
		c := Cell{ID: row}
		row++

		c.Elevation = dbfFloat(reader, idx[ColElevation])
		c.Slope = dbfFloat(reader, idx[ColSlope])
		c.FlowAccumulation = dbfFloat(reader, idx[ColFlowAccumulation])
		c.DistanceToRiver = dbfFloat(reader, idx[ColDistanceToRiver])
		c.Developed = dbfFloat(reader, idx[ColDeveloped])
		c.Forest = dbfFloat(reader, idx[ColForest])
		c.Grassland = dbfFloat(reader, idx[ColGrassland])

		if hasID {
			if v := dbfFloat(reader, idIdx); !math.IsNaN(v) {
				c.ID = int64(v)
			}
		}
		if labeled {
			if v := dbfFloat(reader, labelIdx); !math.IsNaN(v) {
				c.Inundated = v
			}
		}

		if !finite(&c) {
			dropped++
			continue
		}
		cells = append(cells, c)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "grid: read shapefile %s", path)
	}

	if dropped > 0 {
		zap.L().Warn("dropped shapefile rows with missing predictors",
			zap.String("city", city),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(cells)),
		)
	}
	if len(cells) == 0 {
		return nil, eris.Errorf("grid: shapefile %s: no usable rows", path)
	}

	columns := append([]string(nil), PredictorColumns...)
	if labeled {
		columns = append(columns, ColInundated)
	}
	return New(city, cells, columns), nil
}

// lookupDBF finds a column index, tolerating the DBF 10-character name
// truncation (e.g. "flow_accumulation" stored as "flow_accum").
func lookupDBF(fieldIdx map[string]int, col string) (int, bool) {
	if i, ok := fieldIdx[col]; ok {
		return i, true
	}
	if len(col) > 10 {
		if i, ok := fieldIdx[col[:10]]; ok {
			return i, true
		}
	}
	return 0, false
}

// dbfFloat parses a DBF attribute as a float, mapping blank and NA markers
// to NaN so the caller's row-drop policy applies.
func dbfFloat(r *shp.Reader, idx int) float64 {
	raw := strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
	switch raw {
	case "", "NA", "N/A", "NULL", "*":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
