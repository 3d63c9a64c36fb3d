package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// Weightless kinds (maxpool, flatten, reshape, upsample) carry geometry only.
// Batch normalization creates its scale/shift nodes lazily on first Fwd,
// since their shape is known only when the incoming node is known.
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType
	Name       string

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	ReshapeDims  []int
	ScaleFactor  int
	// Momentum and Epsilon apply to batch normalization only.
	// Zero value means "use default": 0.9 for momentum, 1e-5 for epsilon.
	Momentum float64
	Epsilon  float64
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerReshape
	LayerUpsample
	LayerBatchNorm
)

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerReshape, LayerUpsample, LayerBatchNorm}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Feedforwards input node through the layer. Activation function is not applied here
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied for bias nodes
// input - Input node
//
func (l *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	var err error
	layerNonActivated := &gorgonia.Node{}
	switch l.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		if input.Dims() > 2 {
			layerNonActivated, err = gorgonia.BatchedMatMul(input, tOp)
			if err != nil {
				return nil, errors.Wrap(err, "Can't multiply input and weights in batched term")
			}
		} else {
			layerNonActivated, err = gorgonia.Mul(input, tOp)
			if err != nil {
				return nil, errors.Wrap(err, "Can't multiply input and weights")
			}
		}
	case LayerConvolutional:
		layerNonActivated, err = gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerMaxpool:
		layerNonActivated, err = gorgonia.MaxPool2D(input, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel")
		}
	case LayerFlatten:
		layerNonActivated, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
	case LayerReshape:
		layerNonActivated, err = gorgonia.Reshape(input, l.ReshapeDims)
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
	case LayerUpsample:
		layerNonActivated, err = gorgonia.Upsample2D(input, l.ScaleFactor)
		if err != nil {
			return nil, errors.Wrap(err, "Can't upsample[2D] input")
		}
	case LayerBatchNorm:
		layerNonActivated, err = l.fwdBatchNorm(input)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply batch normalization to input")
		}
	default:
		return nil, fmt.Errorf("Layer's type '%d' (uint16) is not handled", l.Type)
	}
	if l.BiasNode != nil && l.Type != LayerBatchNorm {
		layerNonActivated, err = l.addBias(batchSize, layerNonActivated)
		if err != nil {
			return nil, err
		}
	}
	return layerNonActivated, nil
}

func (l *Layer) addBias(batchSize int, node *gorgonia.Node) (*gorgonia.Node, error) {
	var err error
	if l.Type == LayerConvolutional {
		// Bias node of shape (1, C, 1, 1) is spread along batch and spatial axes
		node, err = gorgonia.BroadcastAdd(node, l.BiasNode, nil, []byte{0, 2, 3})
		if err != nil {
			return nil, errors.Wrap(err, "Can't add bias [in broadcast term over batch and spatial axes] to non-activated output")
		}
		return node, nil
	}
	if batchSize < 2 {
		node, err = gorgonia.Add(node, l.BiasNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't add bias to non-activated output")
		}
		return node, nil
	}
	node, err = gorgonia.BroadcastAdd(node, l.BiasNode, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't add bias [in broadcast term with batch_size = %d] to non-activated output", batchSize))
	}
	return node, nil
}

func (l *Layer) fwdBatchNorm(input *gorgonia.Node) (*gorgonia.Node, error) {
	if l.WeightNode == nil {
		name := l.Name
		if name == "" {
			name = "batch_norm"
		}
		g := input.Graph()
		l.WeightNode = gorgonia.NewTensor(g, gorgonia.Float64, input.Dims(), gorgonia.WithShape(input.Shape()...), gorgonia.WithName(name+"_scale"), gorgonia.WithInit(WeightInitFor(LayerBatchNorm)))
		l.BiasNode = gorgonia.NewTensor(g, gorgonia.Float64, input.Dims(), gorgonia.WithShape(input.Shape()...), gorgonia.WithName(name+"_shift"), gorgonia.WithInit(BiasInitFor(LayerBatchNorm)))
	}
	momentum := l.Momentum
	if momentum == 0.0 {
		momentum = 0.9
	}
	epsilon := l.Epsilon
	if epsilon == 0.0 {
		epsilon = 1e-5
	}
	normalized, _, _, _, err := gorgonia.BatchNorm(input, l.WeightNode, l.BiasNode, momentum, epsilon)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}
