package dcgan_go

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNormRandDense(t *testing.T) {
	dense := NormRandDense(4, 16)
	assert.Equal(t, tensor.Shape{4, 16}, dense.Shape())
	assert.Equal(t, 64, dense.DataSize())
}

func TestUniformRandDense(t *testing.T) {
	dense := UniformRandDense(4, 16)
	assert.Equal(t, tensor.Shape{4, 16}, dense.Shape())
	for _, v := range dense.Data().([]float64) {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestSlicerOneStep(t *testing.T) {
	slicer := SlicerOneStep{StartIdx: 3, EndIdx: 7}
	assert.Equal(t, 3, slicer.Start())
	assert.Equal(t, 7, slicer.End())
	assert.Equal(t, 1, slicer.Step())
}

func TestImageToTensorRGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{A: 255})

	dense, err := ImageToTensor(img, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2, 2}, dense.Shape())

	data := dense.Data().([]float64)
	// Red channel plane: pixel (0,0) saturated, pixel (1,1) black
	assert.InDelta(t, 1.0, data[0], 1e-4)
	assert.InDelta(t, -1.0, data[3], 1e-4)
	// Green channel plane: pixel (1,0) saturated
	assert.InDelta(t, 1.0, data[4+1], 1e-4)
	// Blue channel plane: pixel (0,1) saturated
	assert.InDelta(t, 1.0, data[8+2], 1e-4)
}

func TestImageToTensorGrayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 255})
	img.SetGray(1, 0, color.Gray{Y: 0})

	dense, err := ImageToTensor(img, 1)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2}, dense.Shape())

	data := dense.Data().([]float64)
	assert.InDelta(t, 1.0, data[0], 1e-4)
	assert.InDelta(t, -1.0, data[1], 1e-4)
}

func TestImageToTensorBadChannels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	_, err := ImageToTensor(img, 4)
	assert.Error(t, err)
}

func TestImageTensorRoundtrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			src.SetNRGBA(x, y, color.NRGBA{
				R: uint8(40 * (x + 1)),
				G: uint8(60 * (y + 1)),
				B: uint8(30 * (x + y)),
				A: 255,
			})
		}
	}

	dense, err := ImageToTensor(src, 3)
	require.NoError(t, err)
	restored, err := TensorToImage(dense)
	require.NoError(t, err)

	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			wantR, wantG, wantB, _ := src.At(x, y).RGBA()
			gotR, gotG, gotB, _ := restored.At(x, y).RGBA()
			assert.InDelta(t, float64(wantR>>8), float64(gotR>>8), 1.0)
			assert.InDelta(t, float64(wantG>>8), float64(gotG>>8), 1.0)
			assert.InDelta(t, float64(wantB>>8), float64(gotB>>8), 1.0)
		}
	}
}

func TestTensorToImageBatched(t *testing.T) {
	dense := tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking([]float64{1, -1, -1, 1}))
	img, err := TensorToImage(dense)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(255), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), gray.GrayAt(1, 0).Y)
}

func TestTensorToImageErrors(t *testing.T) {
	// Batch with more than one sample
	multi := tensor.New(tensor.WithShape(2, 1, 2, 2), tensor.WithBacking(make([]float64, 8)))
	_, err := TensorToImage(multi)
	assert.Error(t, err)

	// Wrong dimensionality
	flat := tensor.New(tensor.WithShape(4), tensor.WithBacking(make([]float64, 4)))
	_, err = TensorToImage(flat)
	assert.Error(t, err)

	// Unsupported channels number
	twoCh := tensor.New(tensor.WithShape(2, 2, 2), tensor.WithBacking(make([]float64, 8)))
	_, err = TensorToImage(twoCh)
	assert.Error(t, err)
}

func TestMaskCenter(t *testing.T) {
	backing := make([]float64, 2*1*4*4)
	for i := range backing {
		backing[i] = 1.0
	}
	batch := tensor.New(tensor.WithShape(2, 1, 4, 4), tensor.WithBacking(backing))

	masked, bounds, err := MaskCenter(batch, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(1, 1, 3, 3), bounds)

	// Source batch stays untouched
	for _, v := range batch.Data().([]float64) {
		assert.Equal(t, 1.0, v)
	}

	maskedData := masked.Data().([]float64)
	for i := 0; i < 2; i++ {
		planeOffset := i * 16
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				v := maskedData[planeOffset+y*4+x]
				if x >= 1 && x < 3 && y >= 1 && y < 3 {
					assert.Equal(t, 0.0, v)
				} else {
					assert.Equal(t, 1.0, v)
				}
			}
		}
	}
}

func TestMaskCenterErrors(t *testing.T) {
	batch := tensor.New(tensor.WithShape(1, 1, 4, 4), tensor.WithBacking(make([]float64, 16)))
	_, _, err := MaskCenter(batch, 0)
	assert.Error(t, err)
	_, _, err = MaskCenter(batch, 5)
	assert.Error(t, err)

	flat := tensor.New(tensor.WithShape(4, 4), tensor.WithBacking(make([]float64, 16)))
	_, _, err = MaskCenter(flat, 2)
	assert.Error(t, err)
}

func TestPlotLossCurvesLengthMismatch(t *testing.T) {
	err := PlotLossCurves([]float64{1, 2}, []float64{1}, "never_written.png")
	assert.Error(t, err)
}
