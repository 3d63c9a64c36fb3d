package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// DiscriminatorConfig Hyperparameters defining discriminator topology
//
// LatentSize - size of latent vector, carried for symmetry with GeneratorConfig (does not shape the stack)
// FeatureMap - width multiplier for convolutional feature maps
// Channels - number of image channels
// BatchSize - batch size (Gorgonia graphs are shaped statically)
// Conditional - if true, convolutions carry bias nodes
//
type DiscriminatorConfig struct {
	LatentSize  int
	FeatureMap  int
	Channels    int
	BatchSize   int
	Conditional bool
}

// DiscriminatorNet Abstraction for discriminator part of GAN. It's simple neural network actually.
type DiscriminatorNet struct {
	private *Network
}

// Discriminator Constructor for DiscriminatorNet from custom set of layers
func Discriminator(Layers ...*Layer) *DiscriminatorNet {
	return &DiscriminatorNet{private: &Network{
		Name:   "discriminator",
		Layers: Layers,
	}}
}

// NewDiscriminator Constructor for DiscriminatorNet with DCGAN topology.
//
// Four strided convolutions downsample a Channels x 64 x 64 image to
// (8*FeatureMap) x 4 x 4 with leaky ReLU in between, a valid convolution reduces
// it to a single logit per sample and sigmoid maps it to a probability.
//
func NewDiscriminator(g *gorgonia.ExprGraph, cfg DiscriminatorConfig) (*DiscriminatorNet, error) {
	if err := cfg.check(); err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	fm := cfg.FeatureMap
	leaky := LeakyRectifier(leakyReluAlpha)
	withBias := cfg.Conditional

	// 64x64 -> 32x32 -> 16x16 -> 8x8 -> 4x4
	layers := []*Layer{
		newConvLayer(g, "discriminator_conv0", cfg.Channels, fm, 4, 2, 1, withBias, leaky),
	}
	stages := [][2]int{{fm, 2 * fm}, {2 * fm, 4 * fm}, {4 * fm, 8 * fm}}
	for i, stage := range stages {
		layers = append(layers,
			newConvLayer(g, fmt.Sprintf("discriminator_conv%d", i+1), stage[0], stage[1], 4, 2, 1, withBias, NoActivation),
			newBatchNormLayer(fmt.Sprintf("discriminator_bn%d", i+1), leaky),
		)
	}
	// Single logit per sample
	layers = append(layers,
		newConvLayer(g, "discriminator_conv_out", 8*fm, 1, projectionSize, 1, 0, withBias, NoActivation),
		&Layer{
			Type:       LayerFlatten,
			Activation: Sigmoid,
		},
	)
	return &DiscriminatorNet{private: &Network{
		Name:   "discriminator",
		Layers: layers,
	}}, nil
}

func (cfg *DiscriminatorConfig) check() error {
	if cfg.FeatureMap < 1 {
		return fmt.Errorf("Feature map width must be positive, but got %d", cfg.FeatureMap)
	}
	if cfg.Channels < 1 {
		return fmt.Errorf("Number of channels must be positive, but got %d", cfg.Channels)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("Batch size must be positive, but got %d", cfg.BatchSize)
	}
	return nil
}

// Out Returns reference to output node
func (net *DiscriminatorNet) Out() *gorgonia.Node {
	return net.private.out
}

// Learnables Returns learnables nodes
func (net *DiscriminatorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// NumParams Returns total number of scalar parameters
func (net *DiscriminatorNet) NumParams() int {
	return net.private.NumParams()
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *DiscriminatorNet) Fwd(input *gorgonia.Node, batchSize int) error {
	if err := net.private.Fwd(input, batchSize); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	return nil
}
