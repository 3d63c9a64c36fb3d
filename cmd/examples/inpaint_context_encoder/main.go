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
	dataFolder   = flag.String("data", "", "Folder with training images (required)")
	outputFolder = flag.String("output", "./output", "Folder for restored samples and loss chart")

	batchSize    = 2
	featureMap   = 64
	numChannels  = 3
	bottleneck   = 4000
	maskSize     = dcgan.ImageSize / 2
	numEpoches   = 50
	learningRate = 0.0002
	beta1        = 0.5
	lambdaRec    = 0.999
	evalEvery    = 10
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	// Initialize seed with constant value to reproduce results
	rand.Seed(1337)

	if *dataFolder == "" {
		klog.Fatal("Folder with training images must be provided via '-data' flag")
	}
	if err := os.MkdirAll(*outputFolder, 0755); err != nil {
		klog.Fatalf("Can't prepare output folder: %v", err)
	}

	/* Prepare training data */
	trainSet, err := dcgan.NewImageTrainSet(*dataFolder, dcgan.ImageSize, numChannels)
	if err != nil {
		klog.Fatalf("Can't load training images: %v", err)
	}
	klog.Infof("Training set: %d images of %dx%d", trainSet.DataLength, dcgan.ImageSize, dcgan.ImageSize)

	// Define graph for GAN feedforward and Generator training
	ganGraph := gorgonia.NewGraph()
	// Define graph for Discriminator training
	trainDiscriminatorGraph := gorgonia.NewGraph()

	// Define conditional Generator (context encoder) on GAN's evaluation graph
	definedGenerator, err := dcgan.NewGenerator(ganGraph, dcgan.GeneratorConfig{
		FeatureMap:  featureMap,
		Channels:    numChannels,
		Bottleneck:  bottleneck,
		BatchSize:   batchSize,
		Conditional: true,
	})
	if err != nil {
		panic(err)
	}
	// Initialize Generator feedforward. Input is corrupted image instead of latent vector
	inputGenerator := gorgonia.NewTensor(ganGraph, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, numChannels, dcgan.ImageSize, dcgan.ImageSize), gorgonia.WithName("generator_input"))
	err = definedGenerator.Fwd(inputGenerator, batchSize)
	if err != nil {
		panic(err)
	}

	// Define conditional Discriminator on its own evaluation graph
	discriminatorTrain, err := dcgan.NewDiscriminator(trainDiscriminatorGraph, dcgan.DiscriminatorConfig{
		FeatureMap:  featureMap,
		Channels:    numChannels,
		BatchSize:   2 * batchSize,
		Conditional: true,
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

	/* Define variables for reading evaluation graphs' output */
	var restoredSamples gorgonia.Value
	gorgonia.Read(definedGAN.GeneratorOut(), &restoredSamples)

	var outputDiscriminatorTrain gorgonia.Value
	gorgonia.Read(discriminatorTrain.Out(), &outputDiscriminatorTrain)

	// Initialize machine for GAN evaluation graph (without gradients bindings, for sampling only)
	tmGenerator := gorgonia.NewTapeMachine(ganGraph)
	defer tmGenerator.Close()

	// Reference (uncorrupted) images for reconstruction term
	targetImages := gorgonia.NewTensor(ganGraph, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, numChannels, dcgan.ImageSize, dcgan.ImageSize), gorgonia.WithName("generator_target"))
	targetDiscriminatorGAN := gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, 1), gorgonia.WithName("gan_discriminator_target"))
	/* Define joint cost for conditional Generator: reconstruction + adversarial */
	cost, err := dcgan.ContextEncoderLoss(definedGAN.GeneratorOut(), targetImages, definedGAN.Out(), targetDiscriminatorGAN, lambdaRec)
	if err != nil {
		panic(err)
	}
	gorgonia.WithName("context_encoder_loss")(cost)
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
		for b := 0; b < batches; b++ {
			start := b * batchSize
			end := start + batchSize
			if end > trainSet.DataLength {
				break
			}

			/* Batch real data and corrupt its copy */
			xValView, err := trainSet.TrainData.Slice(dcgan.SlicerOneStep{StartIdx: start, EndIdx: end})
			if err != nil {
				panic(err)
			}
			xVal, ok := xValView.Materialize().(*tensor.Dense)
			if !ok {
				panic(fmt.Sprintf("unexpected tensor type %T", xValView))
			}
			corrupted, _, err := dcgan.MaskCenter(xVal, maskSize)
			if err != nil {
				panic(err)
			}

			realSamplesLabels := tensor.Ones(tensor.Float64, batchSize, 1)
			err = gorgonia.Let(inputGenerator, corrupted)
			if err != nil {
				panic(err)
			}

			// Do step on evaluation graph for obtaining 'restoredSamples' (Generator output)
			err = tmGenerator.RunAll()
			if err != nil {
				panic(err)
			}
			tmGenerator.Reset()

			// Assume that Generator restores images badly, and label its output as zero
			restoredSamplesLabels := tensor.Ones(tensor.Float64, batchSize, 1)
			restoredSamplesLabels.Zero()

			// Concat real and restored input data
			allSamples, err := tensor.Concat(0, xVal, restoredSamples.(tensor.Tensor))
			if err != nil {
				panic(err)
			}
			// Concat real and restored output labels
			allSamplesLabels, err := tensor.Concat(0, realSamplesLabels, restoredSamplesLabels)
			if err != nil {
				panic(err)
			}

			// Train discriminator on stacked real and restored data
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

			// Train generator: restore masked region and make discriminator part of GAN believe result is real
			err = gorgonia.Let(inputGenerator, corrupted)
			if err != nil {
				panic(err)
			}
			err = gorgonia.Let(targetImages, xVal)
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
			if err := saveRestored(restoredSamples, fmt.Sprintf("restored_epoch_%d.png", epoch)); err != nil {
				klog.Warningf("Can't save restored sample: %v", err)
			}
		}
	}

	/* Final output: restored sample and loss chart */
	klog.Info("Saving restored sample after final epoch")
	if err := saveRestored(restoredSamples, "restored_final.png"); err != nil {
		klog.Fatalf("Can't save final restored sample: %v", err)
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

func saveRestored(restoredSamples gorgonia.Value, fname string) error {
	if restoredSamples == nil {
		return fmt.Errorf("generator has not produced output yet")
	}
	restored, ok := restoredSamples.(*tensor.Dense)
	if !ok {
		return fmt.Errorf("unexpected value type %T", restoredSamples)
	}
	firstView, err := restored.Slice(dcgan.SlicerOneStep{StartIdx: 0, EndIdx: 1})
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
