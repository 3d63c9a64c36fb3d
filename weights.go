package dcgan_go

import (
	"gorgonia.org/gorgonia"
)

// Weight initialization policy for DCGAN-family models.
//
// Convolutional and linear weights are sampled from N(0, 0.02), batch
// normalization scales from N(1, 0.02) and every bias starts at zero.
// Dispatch is done on LayerType: builders apply these at node creation
// time, so there is no separate "initialize after build" step.

const (
	initWeightStdDev = 0.02
)

// WeightInitFor Returns weight initialization function for given layer type
func WeightInitFor(layerType LayerType) gorgonia.InitWFn {
	switch layerType {
	case LayerConvolutional, LayerLinear:
		return gorgonia.Gaussian(0.0, initWeightStdDev)
	case LayerBatchNorm:
		return gorgonia.Gaussian(1.0, initWeightStdDev)
	default:
		return gorgonia.GlorotN(1.0)
	}
}

// BiasInitFor Returns bias initialization function for given layer type
func BiasInitFor(layerType LayerType) gorgonia.InitWFn {
	return gorgonia.Zeroes()
}
