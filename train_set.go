package dcgan_go

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

type TrainSet struct {
	TrainData  *tensor.Dense
	TrainLabel *tensor.Dense
	DataLength int
}

// NewImageTrainSet Loads every image found in provided directory, resizes it to
// size x size and stacks the result into a (N, channels, size, size) dense tensor.
// Pixel values are scaled to [-1;1] to match Tanh output of generator.
// Labels are just ones ("real" class).
func NewImageTrainSet(dir string, size, channels int) (*TrainSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't read directory '%s'", dir))
	}
	var data *tensor.Dense
	num := 0
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		img, err := imaging.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't open image '%s'", entry.Name()))
		}
		resized := imaging.Resize(img, size, size, imaging.Lanczos)
		if channels == 1 {
			resized = imaging.Grayscale(resized)
		}
		imgTensor, err := ImageToTensor(resized, channels)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't convert image '%s' to tensor", entry.Name()))
		}
		err = imgTensor.Reshape(1, channels, size, size)
		if err != nil {
			return nil, errors.Wrap(err, "Can't prepend batch axis")
		}
		if data == nil {
			data = imgTensor
		} else {
			stacked, err := data.Vstack(imgTensor)
			if err != nil {
				return nil, errors.Wrap(err, "Can't stack image tensors")
			}
			data = stacked
		}
		num++
	}
	if num == 0 {
		return nil, fmt.Errorf("Directory '%s' contains no images", dir)
	}
	return &TrainSet{
		TrainData:  data,
		TrainLabel: tensor.Ones(tensor.Float64, num, 1),
		DataLength: num,
	}, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}
