package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path"
	"time"

	dcgan "github.com/deepgen/dcgan-go"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"
)

var (
	dataFolder   = flag.String("data", "", "Folder with training images. When empty, synthetic blobs are generated")
	outputFolder = flag.String("output", "./output", "Folder for generated samples and loss chart")

	batchSize       = 2
	latentSpaceSize = 100
	featureMap      = 64
	numChannels     = 1
	numExamples     = 64
	numEpoches      = 50
	learningRate    = 0.0002
	beta1           = 0.5
	evalEvery       = 10
)

// genSyntheticData Renders gaussian blobs with random center and spread.
// Keeps the example self-contained when no real dataset is provided.
func genSyntheticData(numSamples int) *dcgan.TrainSet {
	size := dcgan.ImageSize
	data := make([]float64, numSamples*numChannels*size*size)
	for i := 0; i < numSamples; i++ {
		cx := float64(size)/2.0 + rand.NormFloat64()*4.0
		cy := float64(size)/2.0 + rand.NormFloat64()*4.0
		sigma := 6.0 + rand.Float64()*6.0
		offset := i * numChannels * size * size
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				d2 := (float64(x)-cx)*(float64(x)-cx) + (float64(y)-cy)*(float64(y)-cy)
				v := 2.0*math.Exp(-d2/(2.0*sigma*sigma)) - 1.0
				for c := 0; c < numChannels; c++ {
					data[offset+c*size*size+y*size+x] = v
				}
			}
		}
	}
	return &dcgan.TrainSet{
		TrainData:  tensor.New(tensor.WithShape(numSamples, numChannels, size, size), tensor.WithBacking(data)),
		TrainLabel: tensor.Ones(tensor.Float64, numSamples, 1),
		DataLength: numSamples,
	}
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	// Initialize seed with constant value to reproduce results
	rand.Seed(1337)

	if err := os.MkdirAll(*outputFolder, 0755); err != nil {
		klog.Fatalf("Can't prepare output folder: %v", err)
	}

	/* Prepare training data */
	var trainSet *dcgan.TrainSet
	var err error
	if *dataFolder != "" {
		trainSet, err = dcgan.NewImageTrainSet(*dataFolder, dcgan.ImageSize, numChannels)
		if err != nil {
			klog.Fatalf("Can't load training images: %v", err)
		}
	} else {
		trainSet = genSyntheticData(numExamples)
	}
	klog.Infof("Training set: %d images of %dx%d", trainSet.DataLength, dcgan.ImageSize, dcgan.ImageSize)

	// Define graph for GAN feedforward and Generator training
	ganGraph := gorgonia.NewGraph()
	// Define graph for Discriminator training
	trainDiscriminatorGraph := gorgonia.NewGraph()

	// Define Generator on GAN's evaluation graph
	definedGenerator, err := dcgan.NewGenerator(ganGraph, dcgan.GeneratorConfig{
		LatentSize: latentSpaceSize,
		FeatureMap: featureMap,
		Channels:   numChannels,
		BatchSize:  batchSize,
	})
	if err != nil {
		panic(err)
	}
	// Initialize Generator feedforward
	inputGenerator := gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, latentSpaceSize), gorgonia.WithName("generator_input"))
	err = definedGenerator.Fwd(inputGenerator, batchSize)
	if err != nil {
		panic(err)
	}

	// Define Discriminator on its own evaluation graph.
	// It consumes real and generated batches stacked together.
	discriminatorTrain, err := dcgan.NewDiscriminator(trainDiscriminatorGraph, dcgan.DiscriminatorConfig{
		LatentSize: latentSpaceSize,
		FeatureMap: featureMap,
		Channels:   numChannels,
		BatchSize:  2 * batchSize,
	})
	if err != nil {
		panic(err)
	}
	// Initialize Discriminator feedforward
	inputDiscriminatorTrain := gorgonia.NewTensor(trainDiscriminatorGraph, gorgonia.Float64, 4, gorgonia.WithShape(2*batchSize, numChannels, dcgan.ImageSize, dcgan.ImageSize), gorgonia.WithName("discriminator_train_input"))
	err = discriminatorTrain.Fwd(inputDiscriminatorTrain, 2*batchSize)
	if err != nil {
		panic(err)
	}

	// Define GAN on the same evaluation graph as Generator has been defined
	definedGAN, err := dcgan.NewGAN(ganGraph, definedGenerator, discriminatorTrain)
	if err != nil {
		panic(err)
	}
	err = definedGAN.Fwd(batchSize)
	if err != nil {
		panic(err)
	}

	klog.Infof("Generator parameters: %s", humanize.Comma(int64(definedGenerator.NumParams())))
	klog.Infof("Discriminator parameters: %s", humanize.Comma(int64(discriminatorTrain.NumParams())))

	/* Define variables for reading evaluation graphs' (both GAN and Discriminator in training mode) output */
	// GAN Generator output
	var generatedSamples gorgonia.Value
	gorgonia.Read(definedGAN.GeneratorOut(), &generatedSamples)

	// GAN overall output (Discriminator output actually)
	var outputDiscriminator gorgonia.Value
	gorgonia.Read(definedGAN.Out(), &outputDiscriminator)

	// Discriminator output in training mode
	var outputDiscriminatorTrain gorgonia.Value
	gorgonia.Read(discriminatorTrain.Out(), &outputDiscriminatorTrain)

	// Initialize machine for GAN evaluation graph (without gradients bindings, for sampling only)
	tmGenerator := gorgonia.NewTapeMachine(ganGraph)
	defer tmGenerator.Close()

	targetDiscriminatorGAN := gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, 1), gorgonia.WithName("gan_discriminator_target"))
	/* Define cost for GAN */
	cost, err := dcgan.BinaryCrossEntropyLoss(definedGAN.Out(), targetDiscriminatorGAN)
	if err != nil {
		panic(err)
	}
	gorgonia.WithName("gan_discriminator_loss")(cost)
	// Define gradients for GAN
	_, err = gorgonia.Grad(cost, definedGAN.Learnables()...)
	if err != nil {
		panic(err)
	}

	targetDiscriminatorTrain := gorgonia.NewMatrix(trainDiscriminatorGraph, gorgonia.Float64, gorgonia.WithShape(2*batchSize, 1), gorgonia.WithName("discriminator_target"))
	/* Define cost for Discriminator in training mode */
	costDiscriminatorTrain, err := dcgan.BinaryCrossEntropyLoss(discriminatorTrain.Out(), targetDiscriminatorTrain)
	if err != nil {
		panic(err)
	}
	gorgonia.WithName("discriminator_loss")(costDiscriminatorTrain)
	// Define gradients for Discriminator in training mode
	_, err = gorgonia.Grad(costDiscriminatorTrain, discriminatorTrain.Learnables()...)
	if err != nil {
		panic(err)
	}

	/* Read costs nodes into variable for further outputting */
	var costValGAN gorgonia.Value
	gorgonia.Read(cost, &costValGAN)
	var costValDiscriminatorTrain gorgonia.Value
	gorgonia.Read(costDiscriminatorTrain, &costValDiscriminatorTrain)

	// Tape machine for GAN evaluation graph
	tm := gorgonia.NewTapeMachine(ganGraph, gorgonia.BindDualValues(definedGAN.Learnables()...))
	defer tm.Close()
	// Solver for GAN evaluation graph
	solverGAN := dcgan.NewAdamSolver(learningRate, beta1, batchSize)
	// Tape machine for Discriminator [in training mode] evaluation graph
	tmDisTrain := gorgonia.NewTapeMachine(trainDiscriminatorGraph, gorgonia.BindDualValues(discriminatorTrain.Learnables()...))
	defer tmDisTrain.Close()
	// Solver for Discriminator [in training mode] evaluation graph
	solverDiscriminatorTrain := dcgan.NewAdamSolver(learningRate, beta1, 2*batchSize)

	/* Training process */
	batches := trainSet.DataLength / batchSize
	generatorLossHistory := make([]float64, 0, numEpoches)
	discriminatorLossHistory := make([]float64, 0, numEpoches)

	bar := progressbar.Default(int64(numEpoches), "epochs")
	st := time.Now()
	for epoch := 0; epoch < numEpoches; epoch++ {
		// Iterate through batches
		for b := 0; b < batches; b++ {
			start := b * batchSize
			end := start + batchSize
			if end > trainSet.DataLength {
				break
			}

			/* Batch real data */
			xValView, err := trainSet.TrainData.Slice(dcgan.SlicerOneStep{StartIdx: start, EndIdx: end})
			if err != nil {
				panic(err)
			}
			xVal := xValView.Materialize()

			realSamplesLabels := tensor.Ones(tensor.Float64, batchSize, 1)
			latentSpaceSamples := dcgan.NormRandDense(batchSize, latentSpaceSize)
			err = gorgonia.Let(inputGenerator, latentSpaceSamples)
			if err != nil {
				panic(err)
			}

			// Do step on evaluation graph for obtaining 'generatedSamples' (Generator output)
			err = tmGenerator.RunAll()
			if err != nil {
				panic(err)
			}
			tmGenerator.Reset()

			// Assume that Generator generates wrong data, and label its output as zero
			generatedSamplesLabels := tensor.Ones(tensor.Float64, batchSize, 1)
			generatedSamplesLabels.Zero()

			// Concat real and fake input data
			allSamples, err := tensor.Concat(0, xVal, generatedSamples.(tensor.Tensor))
			if err != nil {
				panic(err)
			}
			// Concat real and fake output labels
			allSamplesLabels, err := tensor.Concat(0, realSamplesLabels, generatedSamplesLabels)
			if err != nil {
				panic(err)
			}

			// Train discriminator on stacked real and generated data
			err = gorgonia.Let(inputDiscriminatorTrain, allSamples)
			if err != nil {
				panic(err)
			}
			err = gorgonia.Let(targetDiscriminatorTrain, allSamplesLabels)
			if err != nil {
				panic(err)
			}
			err = tmDisTrain.RunAll()
			if err != nil {
				panic(err)
			}
			err = solverDiscriminatorTrain.Step(gorgonia.NodesToValueGrads(discriminatorTrain.Learnables()))
			if err != nil {
				panic(err)
			}
			tmDisTrain.Reset()

			// Train generator: make discriminator part of GAN believe generated data is real
			latentSpaceSamplesGenerated := dcgan.NormRandDense(batchSize, latentSpaceSize)
			err = gorgonia.Let(inputGenerator, latentSpaceSamplesGenerated)
			if err != nil {
				panic(err)
			}
			err = gorgonia.Let(targetDiscriminatorGAN, realSamplesLabels)
			if err != nil {
				panic(err)
			}
			err = tm.RunAll()
			if err != nil {
				panic(err)
			}
			err = solverGAN.Step(gorgonia.NodesToValueGrads(definedGAN.GeneratorLearnables()))
			if err != nil {
				panic(err)
			}
			tm.Reset()
		}

		generatorLossHistory = append(generatorLossHistory, scalarLoss(costValGAN))
		discriminatorLossHistory = append(discriminatorLossHistory, scalarLoss(costValDiscriminatorTrain))
		bar.Add(1)

		if epoch%evalEvery == 0 {
			klog.Infof("Epoch %d: discriminator's loss %.5f, generator's loss %.5f, taken time %v", epoch, scalarLoss(costValDiscriminatorTrain), scalarLoss(costValGAN), time.Since(st))
			st = time.Now()
			if err := saveSample(tmGenerator, inputGenerator, generatedSamples, fmt.Sprintf("sample_epoch_%d.png", epoch)); err != nil {
				klog.Warningf("Can't save sample: %v", err)
			}
		}
	}

	/* Final test of Generator */
	klog.Info("Start testing generator after final epoch")
	if err := saveSample(tmGenerator, inputGenerator, generatedSamples, "sample_final.png"); err != nil {
		klog.Fatalf("Can't save final sample: %v", err)
	}
	if err := dcgan.PlotLossCurves(generatorLossHistory, discriminatorLossHistory, path.Join(*outputFolder, "loss.png")); err != nil {
		klog.Fatalf("Can't save loss chart: %v", err)
	}
	klog.Infof("Samples and loss chart have been saved to '%s'", *outputFolder)
}

func scalarLoss(v gorgonia.Value) float64 {
	if v == nil {
		return math.NaN()
	}
	f, ok := v.Data().(float64)
	if !ok {
		return math.NaN()
	}
	return f
}

func saveSample(vm gorgonia.VM, inputGenerator *gorgonia.Node, generatedSamples gorgonia.Value, fname string) error {
	samples, err := dcgan.GenerateImageSamples(vm, inputGenerator, generatedSamples, 1, batchSize, latentSpaceSize)
	if err != nil {
		return err
	}
	firstView, err := samples.Slice(dcgan.SlicerOneStep{StartIdx: 0, EndIdx: 1})
	if err != nil {
		return err
	}
	first, ok := firstView.Materialize().(*tensor.Dense)
	if !ok {
		return fmt.Errorf("unexpected tensor type %T", firstView)
	}
	img, err := dcgan.TensorToImage(first)
	if err != nil {
		return err
	}
	return imaging.Save(img, path.Join(*outputFolder, fname))
}
