package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

const (
	// Every builder targets 64x64 images
	ImageSize = 64
	// Spatial size of the projected latent feature map
	projectionSize = 4
	// Default width of the context encoder bottleneck
	DefaultBottleneck = 4000

	leakyReluAlpha = 0.2
)

// GeneratorConfig Hyperparameters defining generator topology
//
// LatentSize - size of latent vector (ignored in conditional mode since input is an image)
// FeatureMap - width multiplier for convolutional feature maps
// Channels - number of image channels
// Bottleneck - width of context encoder bottleneck (conditional mode only, defaults to DefaultBottleneck)
// BatchSize - batch size (Gorgonia graphs are shaped statically)
// Conditional - if true, builds the context encoder (encoder-bottleneck-decoder) instead of the plain DCGAN decoder
//
type GeneratorConfig struct {
	LatentSize  int
	FeatureMap  int
	Channels    int
	Bottleneck  int
	BatchSize   int
	Conditional bool
}

// GeneratorNet Abstraction for generator part of GAN
type GeneratorNet struct {
	private *Network
}

// Generator Constructor for GeneratorNet from custom set of layers
func Generator(Layers ...*Layer) *GeneratorNet {
	return &GeneratorNet{private: &Network{
		Name:   "generator",
		Layers: Layers,
	}}
}

// NewGenerator Constructor for GeneratorNet with DCGAN topology
//
// In plain mode the network decodes a latent vector into a Channels x 64 x 64 image:
// linear projection to (8*FeatureMap) x 4 x 4, then four upsample-convolution
// stages doubling spatial size, batch normalization and ReLU in between, Tanh output.
//
// In conditional mode the network is a context encoder: four strided convolutions
// downsample the input image to (8*FeatureMap) x 4 x 4, a valid convolution squeezes
// it into the bottleneck, and the decoder mirrors the plain generator back to
// Channels x 64 x 64.
//
// Transposed convolutions of the reference DCGAN are realized as nearest-neighbor
// upsampling followed by a 3x3 same-padding convolution.
//
func NewGenerator(g *gorgonia.ExprGraph, cfg GeneratorConfig) (*GeneratorNet, error) {
	if err := cfg.check(); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	if cfg.Conditional {
		return &GeneratorNet{private: &Network{
			Name:   "generator",
			Layers: contextEncoderLayers(g, cfg),
		}}, nil
	}
	return &GeneratorNet{private: &Network{
		Name:   "generator",
		Layers: dcganDecoderLayers(g, cfg),
	}}, nil
}

func (cfg *GeneratorConfig) check() error {
	if cfg.FeatureMap < 1 {
		return fmt.Errorf("Feature map width must be positive, but got %d", cfg.FeatureMap)
	}
	if cfg.Channels < 1 {
		return fmt.Errorf("Number of channels must be positive, but got %d", cfg.Channels)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("Batch size must be positive, but got %d", cfg.BatchSize)
	}
	if !cfg.Conditional && cfg.LatentSize < 1 {
		return fmt.Errorf("Latent vector size must be positive, but got %d", cfg.LatentSize)
	}
	if cfg.Conditional && cfg.Bottleneck == 0 {
		cfg.Bottleneck = DefaultBottleneck
	}
	if cfg.Conditional && cfg.Bottleneck < 1 {
		return fmt.Errorf("Bottleneck width must be positive, but got %d", cfg.Bottleneck)
	}
	return nil
}

// dcganDecoderLayers Plain DCGAN generator: latent vector to image
func dcganDecoderLayers(g *gorgonia.ExprGraph, cfg GeneratorConfig) []*Layer {
	fm := cfg.FeatureMap
	projected := 8 * fm * projectionSize * projectionSize
	layers := []*Layer{
		newLinearLayer(g, "generator_projection", cfg.LatentSize, projected, false, NoActivation),
		newReshapeLayer([]int{cfg.BatchSize, 8 * fm, projectionSize, projectionSize}),
		newBatchNormLayer("generator_bn_projection", Rectify),
	}
	// 4x4 -> 8x8 -> 16x16 -> 32x32
	stages := [][2]int{{8 * fm, 4 * fm}, {4 * fm, 2 * fm}, {2 * fm, fm}}
	for i, stage := range stages {
		layers = append(layers,
			newUpsampleLayer(2),
			newConvLayer(g, fmt.Sprintf("generator_conv%d", i), stage[0], stage[1], 3, 1, 1, false, NoActivation),
			newBatchNormLayer(fmt.Sprintf("generator_bn%d", i), Rectify),
		)
	}
	// 32x32 -> 64x64
	layers = append(layers,
		newUpsampleLayer(2),
		newConvLayer(g, "generator_conv_out", fm, cfg.Channels, 3, 1, 1, false, Tanh),
	)
	return layers
}

// contextEncoderLayers Conditional generator: corrupted image to restored image through a bottleneck
func contextEncoderLayers(g *gorgonia.ExprGraph, cfg GeneratorConfig) []*Layer {
	fm := cfg.FeatureMap
	leaky := LeakyRectifier(leakyReluAlpha)

	// Encoder: 64x64 -> 32x32 -> 16x16 -> 8x8 -> 4x4
	layers := []*Layer{
		newConvLayer(g, "generator_enc_conv0", cfg.Channels, fm, 4, 2, 1, true, leaky),
	}
	stages := [][2]int{{fm, 2 * fm}, {2 * fm, 4 * fm}, {4 * fm, 8 * fm}}
	for i, stage := range stages {
		layers = append(layers,
			newConvLayer(g, fmt.Sprintf("generator_enc_conv%d", i+1), stage[0], stage[1], 4, 2, 1, true, NoActivation),
			newBatchNormLayer(fmt.Sprintf("generator_enc_bn%d", i+1), leaky),
		)
	}

	// Bottleneck: valid convolution squeezes 4x4 into 1x1
	layers = append(layers,
		newConvLayer(g, "generator_bottleneck_conv", 8*fm, cfg.Bottleneck, projectionSize, 1, 0, true, NoActivation),
		newBatchNormLayer("generator_bottleneck_bn", Rectify),
	)

	// Decoder: project bottleneck back to (8*fm) x 4 x 4 and upsample to 64x64
	projected := 8 * fm * projectionSize * projectionSize
	layers = append(layers,
		newFlattenLayer(),
		newLinearLayer(g, "generator_dec_projection", cfg.Bottleneck, projected, true, NoActivation),
		newReshapeLayer([]int{cfg.BatchSize, 8 * fm, projectionSize, projectionSize}),
		newBatchNormLayer("generator_dec_bn_projection", Rectify),
	)
	decStages := [][2]int{{8 * fm, 4 * fm}, {4 * fm, 2 * fm}, {2 * fm, fm}}
	for i, stage := range decStages {
		layers = append(layers,
			newUpsampleLayer(2),
			newConvLayer(g, fmt.Sprintf("generator_dec_conv%d", i), stage[0], stage[1], 3, 1, 1, true, NoActivation),
			newBatchNormLayer(fmt.Sprintf("generator_dec_bn%d", i), Rectify),
		)
	}
	layers = append(layers,
		newUpsampleLayer(2),
		newConvLayer(g, "generator_dec_conv_out", fm, cfg.Channels, 3, 1, 1, true, Tanh),
	)
	return layers
}

// Out Returns reference to output node
func (net *GeneratorNet) Out() *gorgonia.Node {
	return net.private.out
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// NumParams Returns total number of scalar parameters
func (net *GeneratorNet) NumParams() int {
	return net.private.NumParams()
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *GeneratorNet) Fwd(input *gorgonia.Node, batchSize int) error {
	if err := net.private.Fwd(input, batchSize); err != nil {
		return errors.Wrap(err, "[Generator]")
	}
	return nil
}

func newConvLayer(g *gorgonia.ExprGraph, name string, inChannels, outChannels, kernel, stride, pad int, withBias bool, activation ActivationFunc) *Layer {
	layer := &Layer{
		WeightNode: gorgonia.NewTensor(g, gorgonia.Float64, 4,
			gorgonia.WithShape(outChannels, inChannels, kernel, kernel),
			gorgonia.WithName(name+"_w"),
			gorgonia.WithInit(WeightInitFor(LayerConvolutional)),
		),
		Type:         LayerConvolutional,
		Activation:   activation,
		Name:         name,
		KernelHeight: kernel,
		KernelWidth:  kernel,
		Padding:      []int{pad, pad},
		Stride:       []int{stride, stride},
		Dilation:     []int{1, 1},
	}
	if withBias {
		layer.BiasNode = gorgonia.NewTensor(g, gorgonia.Float64, 4,
			gorgonia.WithShape(1, outChannels, 1, 1),
			gorgonia.WithName(name+"_b"),
			gorgonia.WithInit(BiasInitFor(LayerConvolutional)),
		)
	}
	return layer
}

func newLinearLayer(g *gorgonia.ExprGraph, name string, in, out int, withBias bool, activation ActivationFunc) *Layer {
	layer := &Layer{
		WeightNode: gorgonia.NewMatrix(g, gorgonia.Float64,
			gorgonia.WithShape(out, in),
			gorgonia.WithName(name+"_w"),
			gorgonia.WithInit(WeightInitFor(LayerLinear)),
		),
		Type:       LayerLinear,
		Activation: activation,
		Name:       name,
	}
	if withBias {
		layer.BiasNode = gorgonia.NewMatrix(g, gorgonia.Float64,
			gorgonia.WithShape(1, out),
			gorgonia.WithName(name+"_b"),
			gorgonia.WithInit(BiasInitFor(LayerLinear)),
		)
	}
	return layer
}

func newBatchNormLayer(name string, activation ActivationFunc) *Layer {
	return &Layer{
		Type:       LayerBatchNorm,
		Activation: activation,
		Name:       name,
	}
}

func newUpsampleLayer(scale int) *Layer {
	return &Layer{
		Type:        LayerUpsample,
		Activation:  NoActivation,
		ScaleFactor: scale,
	}
}

func newReshapeLayer(dims []int) *Layer {
	return &Layer{
		Type:        LayerReshape,
		Activation:  NoActivation,
		ReshapeDims: dims,
	}
}

func newFlattenLayer() *Layer {
	return &Layer{
		Type:       LayerFlatten,
		Activation: NoActivation,
	}
}
