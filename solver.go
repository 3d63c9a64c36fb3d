package dcgan_go

import (
	"gorgonia.org/gorgonia"
)

const (
	adamBeta2 = 0.999
)

// NewAdamSolver Constructor for Adam solver with DCGAN defaults.
//
// learningRate - solver's learning rate
// beta1 - exponential decay rate for the first moment estimates. Second moment decay rate is fixed to 0.999
// batchSize - batch size basically
//
func NewAdamSolver(learningRate, beta1 float64, batchSize int) gorgonia.Solver {
	return gorgonia.NewAdamSolver(
		gorgonia.WithBatchSize(float64(batchSize)),
		gorgonia.WithLearnRate(learningRate),
		gorgonia.WithBeta1(beta1),
		gorgonia.WithBeta2(adamBeta2),
	)
}
