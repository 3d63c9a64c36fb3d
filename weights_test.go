package dcgan_go

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"
)

func sampleInit(t *testing.T, initFn gorgonia.InitWFn, shape ...int) []float64 {
	t.Helper()
	g := gorgonia.NewGraph()
	node := gorgonia.NewTensor(g, gorgonia.Float64, len(shape),
		gorgonia.WithShape(shape...),
		gorgonia.WithName("sample"),
		gorgonia.WithInit(initFn),
	)
	require.NotNil(t, node.Value())
	return node.Value().Data().([]float64)
}

func TestWeightInitConvolutional(t *testing.T) {
	samples := sampleInit(t, WeightInitFor(LayerConvolutional), 64, 64, 4, 4)
	assert.InDelta(t, 0.0, stat.Mean(samples, nil), 1e-2)
	assert.InDelta(t, initWeightStdDev, stat.StdDev(samples, nil), 5e-3)
}

func TestWeightInitLinear(t *testing.T) {
	samples := sampleInit(t, WeightInitFor(LayerLinear), 512, 512)
	assert.InDelta(t, 0.0, stat.Mean(samples, nil), 1e-2)
	assert.InDelta(t, initWeightStdDev, stat.StdDev(samples, nil), 5e-3)
}

func TestWeightInitBatchNorm(t *testing.T) {
	samples := sampleInit(t, WeightInitFor(LayerBatchNorm), 1, 1024, 1, 1)
	assert.InDelta(t, 1.0, stat.Mean(samples, nil), 1e-2)
	assert.InDelta(t, initWeightStdDev, stat.StdDev(samples, nil), 1e-2)
}

func TestBiasInit(t *testing.T) {
	samples := sampleInit(t, BiasInitFor(LayerConvolutional), 1, 128, 1, 1)
	for i := range samples {
		require.Equal(t, 0.0, samples[i])
	}
}
