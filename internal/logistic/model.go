package logistic

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
)

// FitConfig bounds the IRLS iteration.
type FitConfig struct {
	// MaxIterations caps the IRLS loop so non-convergent inputs terminate.
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"`
	// Tolerance is the relative deviance-change convergence criterion.
	Tolerance float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// DefaultFitConfig returns the standard iteration bounds.
func DefaultFitConfig() FitConfig {
	return FitConfig{MaxIterations: 50, Tolerance: 1e-6}
}

// probEps keeps fitted probabilities strictly inside (0,1) for the
// log-likelihood and the IRLS weights.
const probEps = 1e-12

// pinnedEps is the margin at which a fitted probability counts as
// numerically 0 or 1, the signature of (quasi-)separation.
const pinnedEps = 1e-8

// Fit estimates a binomial logistic regression (logit link) of labelField on
// featureFields by iteratively reweighted least squares. The model is
// returned even when the iteration cap is hit; Converged and Separated on
// the result tell the caller how much to trust it.
func Fit(d *grid.Dataset, featureFields []string, labelField string, cfg FitConfig) (*TrainedModel, error) {
	if len(featureFields) == 0 {
		return nil, eris.New("logistic: fit: no feature fields")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultFitConfig().MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultFitConfig().Tolerance
	}

	x, err := designMatrix(d, featureFields)
	if err != nil {
		return nil, eris.Wrap(err, "logistic: fit")
	}
	y, err := d.Values(labelField)
	if err != nil {
		return nil, eris.Wrap(err, "logistic: fit")
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, eris.Errorf("logistic: fit: label %q row %d is %g, want 0 or 1", labelField, i, v)
		}
	}

	n := d.Len()
	p := len(featureFields) + 1
	if n <= p {
		return nil, eris.Errorf("logistic: fit: %d rows for %d parameters", n, p)
	}

	beta := make([]float64, p)
	eta := make([]float64, n)
	mu := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, n)

	dev := math.Inf(1)
	converged := false
	iterations := 0

	wx := mat.NewDense(n, p, nil)
	wz := mat.NewVecDense(n, nil)
	var xtwx mat.Dense
	var xtwz mat.VecDense
	var next mat.VecDense

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		iterations = iter + 1

		for i := 0; i < n; i++ {
			eta[i] = dot(x.RawRowView(i), beta)
			mu[i] = clampProb(sigmoid(eta[i]))
			w[i] = mu[i] * (1 - mu[i])
			z[i] = eta[i] + (y[i]-mu[i])/w[i]
		}

		// Weighted normal equations: (X'WX) beta = X'Wz.
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			for j := 0; j < p; j++ {
				wx.Set(i, j, w[i]*row[j])
			}
			wz.SetVec(i, w[i]*z[i])
		}
		xtwx.Mul(x.T(), wx)
		xtwz.MulVec(x.T(), wz)

		if err := next.SolveVec(&xtwx, &xtwz); err != nil {
			if _, ill := err.(mat.Condition); !ill {
				return nil, eris.Wrap(err, "logistic: fit: solve weighted least squares")
			}
			// Ill-conditioned but solvable; typically collinear predictors
			// or a separating direction. The separation check below will
			// surface it.
		}
		for j := 0; j < p; j++ {
			beta[j] = next.AtVec(j)
		}

		prev := dev
		dev = deviance(y, x, beta)
		if math.Abs(dev-prev)/(math.Abs(dev)+0.1) < cfg.Tolerance {
			converged = true
			break
		}
	}

	// Quasi-separation: fitted probabilities numerically pinned at 0 or 1.
	separated := false
	for i := 0; i < n; i++ {
		m := sigmoid(dot(x.RawRowView(i), beta))
		if m < pinnedEps || m > 1-pinnedEps {
			separated = true
			break
		}
	}

	model := &TrainedModel{
		Features:     append([]string(nil), featureFields...),
		Link:         "logit",
		SampleSize:   n,
		Iterations:   iterations,
		Deviance:     dev,
		NullDeviance: nullDeviance(y),
		Converged:    converged,
		Separated:    separated,
		TrainedAt:    time.Now().UTC(),
	}
	model.Coefficients = waldTable(featureFields, beta, &xtwx)

	log := zap.L().With(zap.String("city", d.City))
	if !converged {
		log.Warn("logistic fit did not converge within iteration cap",
			zap.Int("iterations", iterations),
			zap.Float64("deviance", dev),
		)
	}
	if separated {
		log.Warn("fitted probabilities numerically 0 or 1; possible separation",
			zap.Float64("deviance", dev),
		)
	}
	log.Info("logistic fit complete",
		zap.Int("rows", n),
		zap.Int("features", len(featureFields)),
		zap.Int("iterations", iterations),
		zap.Float64("deviance", dev),
		zap.Float64("null_deviance", model.NullDeviance),
		zap.Bool("converged", converged),
	)

	return model, nil
}

// waldTable builds the coefficient table with standard errors from the
// inverse observed information (X'WX)^-1 and two-tailed normal p-values.
// A singular information matrix (separation) yields NaN standard errors.
func waldTable(features []string, beta []float64, xtwx *mat.Dense) []Coefficient {
	p := len(beta)

	singular := false
	var cov mat.Dense
	if err := cov.Inverse(xtwx); err != nil {
		if _, ill := err.(mat.Condition); !ill {
			singular = true
		}
	}
	se := make([]float64, p)
	for j := 0; j < p; j++ {
		se[j] = math.NaN()
		if !singular {
			if v := cov.At(j, j); v > 0 {
				se[j] = math.Sqrt(v)
			}
		}
	}

	names := append([]string{InterceptName}, features...)
	coefs := make([]Coefficient, p)
	for j := 0; j < p; j++ {
		zstat := beta[j] / se[j]
		coefs[j] = Coefficient{
			Feature:  names[j],
			Estimate: beta[j],
			StdError: se[j],
			Z:        zstat,
			PValue:   2 * distuv.UnitNormal.Survival(math.Abs(zstat)),
		}
	}
	return coefs
}

// designMatrix builds the n x (p+1) matrix [1 | features] in the given
// feature order.
func designMatrix(d *grid.Dataset, features []string) (*mat.Dense, error) {
	n := d.Len()
	x := mat.NewDense(n, len(features)+1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for j, f := range features {
		col, err := d.Values(f)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			x.Set(i, j+1, col[i])
		}
	}
	return x, nil
}

func deviance(y []float64, x *mat.Dense, beta []float64) float64 {
	var ll float64
	for i := range y {
		m := clampProb(sigmoid(dot(x.RawRowView(i), beta)))
		ll += y[i]*math.Log(m) + (1-y[i])*math.Log(1-m)
	}
	return -2 * ll
}

func nullDeviance(y []float64) float64 {
	var sum float64
	for _, v := range y {
		sum += v
	}
	m := clampProb(sum / float64(len(y)))
	var ll float64
	for _, v := range y {
		ll += v*math.Log(m) + (1-v)*math.Log(1-m)
	}
	return -2 * ll
}

func sigmoid(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}

func clampProb(p float64) float64 {
	if p < probEps {
		return probEps
	}
	if p > 1-probEps {
		return 1 - probEps
	}
	return p
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
