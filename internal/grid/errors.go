package grid

import "github.com/rotisserie/eris"

// Sentinel errors for the dataset layer. Callers match with eris.Is.
var (
	// ErrSchemaMismatch means a required column is absent at predict or
	// evaluate time. Fatal; there is no recovery short of fixing the input.
	ErrSchemaMismatch = eris.New("required field absent")

	// ErrDegenerateSplit means a train/test partition ended up with zero
	// positive-label rows. Callers should re-split with a different seed or
	// fraction.
	ErrDegenerateSplit = eris.New("partition lacks positive labels")
)
