package dcgan_go

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values
//
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func NormRandDense(batchSize, n int) *tensor.Dense {
	norm := distuv.Normal{Mu: 0.0, Sigma: 1.0}
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = norm.Rand()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// UniformRandDense Return reference to tensor.Dense filled with pseudo-random float64 values in range [0.0,1.0)
//
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func UniformRandDense(batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = rand.Float64()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// SlicerOneStep Just iterator with step size = 1
type SlicerOneStep struct {
	StartIdx, EndIdx int
}

func (s SlicerOneStep) Start() int { return s.StartIdx }
func (s SlicerOneStep) End() int   { return s.EndIdx }
func (s SlicerOneStep) Step() int  { return 1 }

// ImageToTensor Converts image to a (channels, height, width) dense tensor
// with values scaled to [-1;1]
func ImageToTensor(img image.Image, channels int) (*tensor.Dense, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("Only 1 or 3 channels are supported, but got %d", channels)
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	data := make([]float64, channels*height*width)
	planeSize := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if channels == 1 {
				// ITU-R BT.601 luminance
				lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
				data[y*width+x] = lum/32767.5 - 1.0
				continue
			}
			data[y*width+x] = float64(r)/32767.5 - 1.0
			data[planeSize+y*width+x] = float64(g)/32767.5 - 1.0
			data[2*planeSize+y*width+x] = float64(b)/32767.5 - 1.0
		}
	}
	return tensor.New(tensor.WithShape(channels, height, width), tensor.WithBacking(data)), nil
}

// TensorToImage Converts a (channels, height, width) or (1, channels, height, width)
// dense tensor with values in [-1;1] back to image
func TensorToImage(t *tensor.Dense) (image.Image, error) {
	shape := t.Shape()
	if len(shape) == 4 {
		if shape[0] != 1 {
			return nil, fmt.Errorf("Batched tensor must have single sample, but got %d", shape[0])
		}
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("Tensor must have 3 dimensions (excluding batch one), but got %d", len(shape))
	}
	channels, height, width := shape[0], shape[1], shape[2]
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("Only 1 or 3 channels are supported, but got %d", channels)
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Tensor must be of float64 type, but got %v", t.Dtype())
	}
	planeSize := height * width
	if channels == 1 {
		img := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray(x, y, color.Gray{Y: clampPixel(data[y*width+x])})
			}
		}
		return img, nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: clampPixel(data[y*width+x]),
				G: clampPixel(data[planeSize+y*width+x]),
				B: clampPixel(data[2*planeSize+y*width+x]),
				A: 255,
			})
		}
	}
	return img, nil
}

func clampPixel(v float64) uint8 {
	scaled := (v + 1.0) * 127.5
	if scaled < 0.0 {
		return 0
	}
	if scaled > 255.0 {
		return 255
	}
	return uint8(scaled)
}

// MaskCenter Returns copy of provided (N, C, H, W) batch with the center
// maskSize x maskSize square of every sample zeroed out, along with the mask bounds.
// Used as input corruption for the context encoder.
func MaskCenter(batch *tensor.Dense, maskSize int) (*tensor.Dense, image.Rectangle, error) {
	shape := batch.Shape()
	if len(shape) != 4 {
		return nil, image.Rectangle{}, fmt.Errorf("Batch must have 4 dimensions, but got %d", len(shape))
	}
	num, channels, height, width := shape[0], shape[1], shape[2], shape[3]
	if maskSize < 1 || maskSize > height || maskSize > width {
		return nil, image.Rectangle{}, fmt.Errorf("Mask size must be in range [1;%d], but got %d", height, maskSize)
	}
	masked := batch.Clone().(*tensor.Dense)
	data, ok := masked.Data().([]float64)
	if !ok {
		return nil, image.Rectangle{}, fmt.Errorf("Batch must be of float64 type, but got %v", batch.Dtype())
	}
	top := (height - maskSize) / 2
	left := (width - maskSize) / 2
	for i := 0; i < num; i++ {
		for c := 0; c < channels; c++ {
			planeOffset := (i*channels + c) * height * width
			for y := top; y < top+maskSize; y++ {
				for x := left; x < left+maskSize; x++ {
					data[planeOffset+y*width+x] = 0.0
				}
			}
		}
	}
	return masked, image.Rect(left, top, left+maskSize, top+maskSize), nil
}

// PlotXY Plot chart for input y(x)
func PlotXY(x, y tensor.Tensor, fname string) error {
	if x.Dims() != 1 {
		return fmt.Errorf("X must have one dimension, but got %d", x.Dims())
	}
	if y.Dims() != 1 {
		return fmt.Errorf("Y(X) must have one dimension, but got %d", x.Dims())
	}
	if x.DataSize() != y.DataSize() {
		return fmt.Errorf("X and Y(X) must have same number of elements, but X has %d elements and Y(X) has %d elements", x.DataSize(), y.DataSize())
	}
	scatterData := make(plotter.XYs, x.DataSize())
	for i := 0; i < x.DataSize(); i++ {
		xval, err := x.At(i)
		if err != nil {
			return errors.Wrap(err, "Can't select X-value")
		}
		yval, err := y.At(i)
		if err != nil {
			return errors.Wrap(err, "Can't select Y(x)-value")
		}
		// Do no cast interfaces{} to any type when you are not sure about types
		scatterData[i].X = xval.(float64)
		scatterData[i].Y = yval.(float64)
	}
	scatter, err := plotter.NewScatter(scatterData)
	if err != nil {
		return errors.Wrap(err, "Can't init new scatter")
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	p := plot.New()
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())
	p.Add(scatter)
	// Save the plot to a PNG file.
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// PlotLossCurves Plot generator and discriminator loss history into single chart
func PlotLossCurves(generatorLoss, discriminatorLoss []float64, fname string) error {
	if len(generatorLoss) != len(discriminatorLoss) {
		return fmt.Errorf("Loss histories must have same number of elements, but got %d and %d", len(generatorLoss), len(discriminatorLoss))
	}
	genLine := make(plotter.XYs, len(generatorLoss))
	disLine := make(plotter.XYs, len(discriminatorLoss))
	for i := range generatorLoss {
		genLine[i].X = float64(i)
		genLine[i].Y = generatorLoss[i]
		disLine[i].X = float64(i)
		disLine[i].Y = discriminatorLoss[i]
	}
	p := plot.New()
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	genPlot, err := plotter.NewLine(genLine)
	if err != nil {
		return errors.Wrap(err, "Can't init generator's line")
	}
	genPlot.Color = color.RGBA{R: 255, A: 255}
	disPlot, err := plotter.NewLine(disLine)
	if err != nil {
		return errors.Wrap(err, "Can't init discriminator's line")
	}
	disPlot.Color = color.RGBA{B: 255, A: 255}
	p.Add(genPlot, disPlot)
	p.Legend.Add("generator", genPlot)
	p.Legend.Add("discriminator", disPlot)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// GenerateImageSamples Generates image samples from random latent vectors
//
// vmGenerator - tape machine holding Generator's evaluation graph
// inputGenerator - node for holding value of Generator's input
// generatorOutValue - variable with access to Generator's output
// numSamples - how many sampling rounds to run
// batchSize - batch size basically
// latentSize - number of elements in each latent vector
//
func GenerateImageSamples(vmGenerator gorgonia.VM, inputGenerator *gorgonia.Node, generatorOutValue gorgonia.Value, numSamples, batchSize, latentSize int) (*tensor.Dense, error) {
	var samplesTensor *tensor.Dense
	for i := 0; i < numSamples; i++ {
		latentSpaceSamples := NormRandDense(batchSize, latentSize)
		err := gorgonia.Let(inputGenerator, latentSpaceSamples)
		if err != nil {
			return nil, errors.Wrap(err, "Can't init input value")
		}
		err = vmGenerator.RunAll()
		if err != nil {
			return nil, errors.Wrap(err, "Can't run VM")
		}
		vmGenerator.Reset()
		tensorV := generatorOutValue.(*tensor.Dense).Clone().(*tensor.Dense)
		if i == 0 {
			samplesTensor = tensorV
			continue
		}
		newT, err := samplesTensor.Vstack(tensorV)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do concatenation")
		}
		samplesTensor = newT
	}
	return samplesTensor, nil
}
