package dcgan_go

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestNoWeightsAllowed(t *testing.T) {
	assert.False(t, noWeightsAllowed(LayerLinear))
	assert.False(t, noWeightsAllowed(LayerConvolutional))
	assert.True(t, noWeightsAllowed(LayerFlatten))
	assert.True(t, noWeightsAllowed(LayerMaxpool))
	assert.True(t, noWeightsAllowed(LayerReshape))
	assert.True(t, noWeightsAllowed(LayerUpsample))
	assert.True(t, noWeightsAllowed(LayerBatchNorm))
}

func TestConvLayerFwdShape(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := newConvLayer(g, "conv", 3, 8, 4, 2, 1, false, NoActivation)
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 3, 64, 64), gorgonia.WithName("input"))

	out, err := layer.Fwd(1, input)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 8, 32, 32}, out.Shape())
}

func TestConvLayerBiasShape(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := newConvLayer(g, "conv", 1, 4, 3, 1, 1, true, NoActivation)
	require.NotNil(t, layer.BiasNode)
	assert.Equal(t, tensor.Shape{1, 4, 1, 1}, layer.BiasNode.Shape())

	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 1, 16, 16), gorgonia.WithName("input"))
	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 16, 16}, out.Shape())
}

func TestUpsampleLayerFwdShape(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := newUpsampleLayer(2)
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 8, 4, 4), gorgonia.WithName("input"))

	out, err := layer.Fwd(1, input)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 8, 8, 8}, out.Shape())
}

func TestFlattenLayerFwdShape(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := newFlattenLayer()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 8, 4, 4), gorgonia.WithName("input"))

	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 128}, out.Shape())
}

func TestReshapeLayerFwdShape(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := newReshapeLayer([]int{2, 8, 4, 4})
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 128), gorgonia.WithName("input"))

	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 8, 4, 4}, out.Shape())
}

func TestBatchNormLayerLazyNodes(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := newBatchNormLayer("bn", NoActivation)
	require.Nil(t, layer.WeightNode)
	require.Nil(t, layer.BiasNode)

	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 8, 16, 16), gorgonia.WithName("input"))
	out, err := layer.Fwd(2, input)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 8, 16, 16}, out.Shape())
	require.NotNil(t, layer.WeightNode)
	require.NotNil(t, layer.BiasNode)
	assert.Equal(t, input.Shape(), layer.WeightNode.Shape())
	assert.Equal(t, input.Shape(), layer.BiasNode.Shape())
}

func TestMaxpoolLayerFwdShape(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := &Layer{
		Type:         LayerMaxpool,
		Activation:   NoActivation,
		KernelHeight: 2,
		KernelWidth:  2,
		Padding:      []int{0, 0},
		Stride:       []int{2, 2},
	}
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 8, 16, 16), gorgonia.WithName("input"))

	out, err := layer.Fwd(1, input)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 8, 8, 8}, out.Shape())
}

func TestBatchNormLayerExplicitParams(t *testing.T) {
	g := gorgonia.NewGraph()
	// Zero-valued Momentum/Epsilon fall back to defaults, explicit values are kept as is
	layer := newBatchNormLayer("bn", NoActivation)
	layer.Momentum = 0.5
	layer.Epsilon = 1e-3

	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 4, 8, 8), gorgonia.WithName("input"))
	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 8, 8}, out.Shape())
	assert.Equal(t, 0.5, layer.Momentum)
	assert.Equal(t, 1e-3, layer.Epsilon)
}

func TestLayerFwdUnknownType(t *testing.T) {
	g := gorgonia.NewGraph()
	layer := &Layer{Type: LayerType(250), Activation: NoActivation}
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 2), gorgonia.WithName("input"))

	_, err := layer.Fwd(1, input)
	assert.Error(t, err)
}
