package grid

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Range is a closed target interval for min-max normalization.
type Range struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// Default normalization targets. These reflect each variable's approximate
// cross-city dynamic range; they are configuration, not a universal law.
var (
	DefaultElevationRange = Range{Min: 0, Max: 300}
	DefaultFlowAccumRange = Range{Min: 0, Max: 10000}
)

// Normalize rescales the source column linearly from the dataset's own
// observed min/max onto [target.Min, target.Max] and writes the result to
// the derived column. It must be run once per city dataset: each city is
// rescaled against its own range, which is what lets a model fit on one
// city's absolute elevations transfer to another's.
//
// A constant source column degrades to the midpoint of the target range for
// every row, with a logged warning.
func Normalize(d *Dataset, source, derived string, target Range) error {
	if target.Max < target.Min {
		return eris.Errorf("grid: normalize %s: inverted target range [%g,%g]", source, target.Min, target.Max)
	}

	values, err := d.Values(source)
	if err != nil {
		return eris.Wrapf(err, "grid: normalize %s", source)
	}
	if len(values) == 0 {
		return eris.Errorf("grid: normalize %s: empty dataset", source)
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(values))
	if hi == lo {
		mid := (target.Min + target.Max) / 2
		for i := range out {
			out[i] = mid
		}
		zap.L().Warn("constant field normalized to target midpoint",
			zap.String("city", d.City),
			zap.String("field", source),
			zap.Float64("value", lo),
			zap.Float64("midpoint", mid),
		)
		return d.SetDerived(derived, out)
	}

	// (hi-lo)*((Max-Min)/(hi-lo)) is not exact in float64, so the observed
	// extremes are pinned to the target bounds and the rest clamped; every
	// output stays inside [Min,Max] with the extremes mapped exactly.
	scale := (target.Max - target.Min) / (hi - lo)
	for i, v := range values {
		switch v {
		case lo:
			out[i] = target.Min
		case hi:
			out[i] = target.Max
		default:
			n := target.Min + (v-lo)*scale
			if n < target.Min {
				n = target.Min
			} else if n > target.Max {
				n = target.Max
			}
			out[i] = n
		}
	}
	return d.SetDerived(derived, out)
}
