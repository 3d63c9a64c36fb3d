package dcgan_go

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func defineLinearGenerator(g *gorgonia.ExprGraph) *GeneratorNet {
	w0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(8, 4), gorgonia.WithName("generator_w0"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	w1 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(16, 8), gorgonia.WithName("generator_w1"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	return Generator(
		&Layer{WeightNode: w0, Type: LayerLinear, Activation: Rectify},
		&Layer{WeightNode: w1, Type: LayerLinear, Activation: Tanh},
	)
}

func defineLinearDiscriminator(g *gorgonia.ExprGraph) *DiscriminatorNet {
	w0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(8, 16), gorgonia.WithName("discriminator_w0"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	b0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 8), gorgonia.WithName("discriminator_b0"), gorgonia.WithInit(gorgonia.Zeroes()))
	w1 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 8), gorgonia.WithName("discriminator_w1"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	return Discriminator(
		&Layer{WeightNode: w0, BiasNode: b0, Type: LayerLinear, Activation: Rectify},
		&Layer{WeightNode: w1, Type: LayerLinear, Activation: Sigmoid},
	)
}

func TestNewGANLearnables(t *testing.T) {
	ganGraph := gorgonia.NewGraph()
	disGraph := gorgonia.NewGraph()

	generator := defineLinearGenerator(ganGraph)
	inputGenerator := gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(1, 4), gorgonia.WithName("generator_input"))
	require.NoError(t, generator.Fwd(inputGenerator, 1))

	discriminator := defineLinearDiscriminator(disGraph)
	inputDiscriminator := gorgonia.NewMatrix(disGraph, gorgonia.Float64, gorgonia.WithShape(1, 16), gorgonia.WithName("discriminator_input"))
	require.NoError(t, discriminator.Fwd(inputDiscriminator, 1))

	definedGAN, err := NewGAN(ganGraph, generator, discriminator)
	require.NoError(t, err)

	// Generator's 2 weights only
	assert.Len(t, definedGAN.GeneratorLearnables(), 2)
	// Generator's 2 weights + cloned discriminator's 2 weights and 1 bias
	assert.Len(t, definedGAN.Learnables(), 5)
}

func TestGANFwd(t *testing.T) {
	ganGraph := gorgonia.NewGraph()
	disGraph := gorgonia.NewGraph()

	generator := defineLinearGenerator(ganGraph)
	inputGenerator := gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(1, 4), gorgonia.WithName("generator_input"))
	require.NoError(t, generator.Fwd(inputGenerator, 1))

	discriminator := defineLinearDiscriminator(disGraph)
	inputDiscriminator := gorgonia.NewMatrix(disGraph, gorgonia.Float64, gorgonia.WithShape(1, 16), gorgonia.WithName("discriminator_input"))
	require.NoError(t, discriminator.Fwd(inputDiscriminator, 1))

	definedGAN, err := NewGAN(ganGraph, generator, discriminator)
	require.NoError(t, err)
	require.NoError(t, definedGAN.Fwd(1))

	require.NotNil(t, definedGAN.Out())
	assert.Equal(t, tensor.Shape{1, 1}, definedGAN.Out().Shape())
	assert.Equal(t, generator.Out(), definedGAN.GeneratorOut())
}

func TestGANFwdWithoutGeneratorFwd(t *testing.T) {
	ganGraph := gorgonia.NewGraph()
	disGraph := gorgonia.NewGraph()

	generator := defineLinearGenerator(ganGraph)

	discriminator := defineLinearDiscriminator(disGraph)
	inputDiscriminator := gorgonia.NewMatrix(disGraph, gorgonia.Float64, gorgonia.WithShape(1, 16), gorgonia.WithName("discriminator_input"))
	require.NoError(t, discriminator.Fwd(inputDiscriminator, 1))

	definedGAN, err := NewGAN(ganGraph, generator, discriminator)
	require.NoError(t, err)
	assert.Error(t, definedGAN.Fwd(1))
}

func TestGANBatchNormNotCloned(t *testing.T) {
	ganGraph := gorgonia.NewGraph()
	disGraph := gorgonia.NewGraph()

	generator := Generator(&Layer{Type: LayerReshape, ReshapeDims: []int{1, 3, 4, 4}, Activation: NoActivation})
	inputGenerator := gorgonia.NewTensor(ganGraph, gorgonia.Float64, 4, gorgonia.WithShape(1, 3, 4, 4), gorgonia.WithName("generator_input"))
	require.NoError(t, generator.Fwd(inputGenerator, 1))

	// Discriminator is fed with doubled batch, so its normalization nodes get doubled batch shape too
	discriminator := Discriminator(&Layer{Type: LayerBatchNorm, Name: "discriminator_bn", Activation: Sigmoid})
	inputDiscriminator := gorgonia.NewTensor(disGraph, gorgonia.Float64, 4, gorgonia.WithShape(2, 3, 4, 4), gorgonia.WithName("discriminator_input"))
	require.NoError(t, discriminator.Fwd(inputDiscriminator, 2))

	definedGAN, err := NewGAN(ganGraph, generator, discriminator)
	require.NoError(t, err)
	// Normalization nodes are not cloned until GAN feedforward
	assert.Len(t, definedGAN.Learnables(), 0)

	require.NoError(t, definedGAN.Fwd(1))
	// Lazily created scale and shift nodes follow GAN's own batch size
	learnables := definedGAN.Learnables()
	require.Len(t, learnables, 2)
	for _, learnable := range learnables {
		assert.Equal(t, tensor.Shape{1, 3, 4, 4}, learnable.Shape())
	}
}

func TestNewGANNilWeights(t *testing.T) {
	ganGraph := gorgonia.NewGraph()

	generator := defineLinearGenerator(ganGraph)
	discriminator := Discriminator(&Layer{Type: LayerLinear, Activation: Sigmoid})

	_, err := NewGAN(ganGraph, generator, discriminator)
	assert.Error(t, err)
}
