package evaluate

import (
	"encoding/json"
	"math"
)

// NaN is the sentinel for undefined metrics, and encoding/json refuses it.
// Reports round-trip through the store and the model artifact, so the NaN
// fields marshal as null and come back as NaN.

func nanPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func ptrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type reportJSON struct {
	Threshold   float64    `json:"threshold"`
	Confusion   Confusion  `json:"confusion"`
	Accuracy    *float64   `json:"accuracy"`
	Sensitivity *float64   `json:"sensitivity"`
	Specificity *float64   `json:"specificity"`
	Kappa       *float64   `json:"kappa"`
	ROC         []ROCPoint `json:"roc"`
	AUC         *float64   `json:"auc"`
	CrossVal    *CVSummary `json:"cross_validation,omitempty"`
}

func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		Threshold:   r.Threshold,
		Confusion:   r.Confusion,
		Accuracy:    nanPtr(r.Accuracy),
		Sensitivity: nanPtr(r.Sensitivity),
		Specificity: nanPtr(r.Specificity),
		Kappa:       nanPtr(r.Kappa),
		ROC:         r.ROC,
		AUC:         nanPtr(r.AUC),
		CrossVal:    r.CrossVal,
	})
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var aux reportJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Report{
		Threshold:   aux.Threshold,
		Confusion:   aux.Confusion,
		Accuracy:    ptrNaN(aux.Accuracy),
		Sensitivity: ptrNaN(aux.Sensitivity),
		Specificity: ptrNaN(aux.Specificity),
		Kappa:       ptrNaN(aux.Kappa),
		ROC:         aux.ROC,
		AUC:         ptrNaN(aux.AUC),
		CrossVal:    aux.CrossVal,
	}
	return nil
}

type cvSummaryJSON struct {
	Folds        int        `json:"folds"`
	MeanAccuracy float64    `json:"mean_accuracy"`
	MeanKappa    *float64   `json:"mean_kappa"`
	KappaFolds   int        `json:"kappa_folds"`
	FoldAccuracy []float64  `json:"fold_accuracy"`
	FoldKappa    []*float64 `json:"fold_kappa"`
}

func (s CVSummary) MarshalJSON() ([]byte, error) {
	kappas := make([]*float64, len(s.FoldKappa))
	for i, v := range s.FoldKappa {
		kappas[i] = nanPtr(v)
	}
	return json.Marshal(cvSummaryJSON{
		Folds:        s.Folds,
		MeanAccuracy: s.MeanAccuracy,
		MeanKappa:    nanPtr(s.MeanKappa),
		KappaFolds:   s.KappaFolds,
		FoldAccuracy: s.FoldAccuracy,
		FoldKappa:    kappas,
	})
}

func (s *CVSummary) UnmarshalJSON(data []byte) error {
	var aux cvSummaryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	kappas := make([]float64, len(aux.FoldKappa))
	for i, p := range aux.FoldKappa {
		kappas[i] = ptrNaN(p)
	}
	*s = CVSummary{
		Folds:        aux.Folds,
		MeanAccuracy: aux.MeanAccuracy,
		MeanKappa:    ptrNaN(aux.MeanKappa),
		KappaFolds:   aux.KappaFolds,
		FoldAccuracy: aux.FoldAccuracy,
		FoldKappa:    kappas,
	}
	return nil
}
