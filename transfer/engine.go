// Package transfer implements iterative neural style transfer: given a
// content image and a style image, it optimizes a third image so that
// its feature activations match the content image's at one extractor
// layer while its Gram matrices match the style image's at several
// others.
package transfer

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/openfluke/dye/imaging"
	"github.com/openfluke/dye/nn"
)

// Options configures one style transfer run. Zero-valued fields fall
// back to the defaults below, except NumSteps, where zero is a
// legitimate configuration (no optimization, the downscaled content
// image is returned unchanged).
type Options struct {
	NumSteps      int     // optimization iterations (default 200)
	StyleWeight   float32 // weight of the Gram-matrix loss (default 1e6)
	ContentWeight float32 // weight of the content activation loss (default 1)
	MaxDimension  int     // content images are downscaled so max(H,W) <= this (default 512)
	LearningRate  float32 // Adam step size (default 0.02)

	// OnStep, if set, is called once per iteration with the total loss
	// measured before that iteration's update
	OnStep func(step int, loss float32)
}

// DefaultOptions returns the reference parameter set.
// StyleWeight dwarfs ContentWeight on purpose: raw Gram products are
// numerically much larger than raw activation differences, and the
// weights are tuned against the unnormalized Gram scale.
func DefaultOptions() Options {
	return Options{
		NumSteps:      200,
		StyleWeight:   1e6,
		ContentWeight: 1,
		MaxDimension:  512,
		LearningRate:  0.02,
	}
}

func (o Options) withDefaults() Options {
	if o.StyleWeight == 0 {
		o.StyleWeight = 1e6
	}
	if o.ContentWeight == 0 {
		o.ContentWeight = 1
	}
	if o.MaxDimension == 0 {
		o.MaxDimension = 512
	}
	if o.LearningRate == 0 {
		o.LearningRate = 0.02
	}
	return o
}

func (o Options) validate() error {
	if o.NumSteps < 0 {
		return fmt.Errorf("transfer: NumSteps must be >= 0, got %d", o.NumSteps)
	}
	if o.StyleWeight < 0 || o.ContentWeight < 0 {
		return fmt.Errorf("transfer: loss weights must be positive, got style=%v content=%v",
			o.StyleWeight, o.ContentWeight)
	}
	if o.MaxDimension < 0 {
		return fmt.Errorf("transfer: MaxDimension must be positive, got %d", o.MaxDimension)
	}
	if o.LearningRate < 0 {
		return fmt.Errorf("transfer: LearningRate must be positive, got %v", o.LearningRate)
	}
	return nil
}

// Run performs the full style transfer procedure: decode both images,
// resize the style image to the content image's resolution, then run
// exactly NumSteps optimizer iterations on a copy of the content image
// and return the result as an 8-bit image.
//
// The call blocks until done; there is no convergence check and no
// early exit other than DivergenceError. The extractor is only read,
// so a single extractor may serve concurrent Run calls; all mutable
// state is local to the call.
func Run(e *nn.Extractor, content, style io.Reader, opts Options) (image.Image, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	contentT, err := imaging.Decode(content, opts.MaxDimension)
	if err != nil {
		return nil, err
	}
	styleT, err := imaging.DecodeTo(style, contentT.Shape[2], contentT.Shape[3])
	if err != nil {
		return nil, err
	}

	// Reference activations never change: one forward pass each,
	// outside the loop.
	contentFeats, err := e.Features(contentT)
	if err != nil {
		return nil, err
	}
	styleFeats, err := e.Features(styleT)
	if err != nil {
		return nil, err
	}

	styleGrams := make(map[int]*nn.Tensor, len(e.StyleTaps()))
	for _, tap := range e.StyleTaps() {
		styleGrams[tap] = nn.Gram(styleFeats[tap])
	}

	generated := contentT.Clone()
	optimizer := nn.NewAdam(opts.LearningRate)
	styleTaps := e.StyleTaps()
	contentTap := e.ContentTap()
	contentRef := contentFeats[contentTap]

	for step := 0; step < opts.NumSteps; step++ {
		pass, err := e.Forward(generated)
		if err != nil {
			return nil, err
		}

		seeds := make(map[int][]float32, len(styleGrams)+1)

		// Content loss: MSE between activations at the content tap.
		contentAct := pass.Tap(contentTap)
		contentLoss := mse(contentAct.Data, contentRef.Data)
		addSeed(seeds, contentTap, mseGrad(contentAct.Data, contentRef.Data, opts.ContentWeight))

		// Style loss: summed MSE between Gram matrices at each style
		// tap, accumulated in tap order so runs are reproducible.
		styleLoss := float32(0)
		for _, tap := range styleTaps {
			styleGram := styleGrams[tap]
			act := pass.Tap(tap)
			gram := nn.Gram(act)
			styleLoss += mse(gram.Data, styleGram.Data)

			gradGram := nn.NewTensorFromSlice(mseGrad(gram.Data, styleGram.Data, opts.StyleWeight), gram.Shape...)
			addSeed(seeds, tap, nn.GramBackward(gradGram, act))
		}

		totalLoss := opts.ContentWeight*contentLoss + opts.StyleWeight*styleLoss
		if !finite(totalLoss) {
			return nil, &DivergenceError{Step: step, Loss: float64(totalLoss)}
		}

		grad := pass.BackwardInput(seeds)
		optimizer.Step(generated.Data, grad)

		if opts.OnStep != nil {
			opts.OnStep(step, totalLoss)
		}
	}

	return imaging.ToImage(generated), nil
}

// mse returns the mean squared difference between two equal-length
// slices
func mse(a, b []float32) float32 {
	sum := float32(0)
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum / float32(len(a))
}

// mseGrad returns weight * d/da mean((a-b)^2) = weight * 2(a-b)/n
func mseGrad(a, b []float32, weight float32) []float32 {
	scale := weight * 2 / float32(len(a))
	grad := make([]float32, len(a))
	for i := range a {
		grad[i] = scale * (a[i] - b[i])
	}
	return grad
}

// addSeed accumulates a gradient into the per-tap seed map. The
// content tap and a style tap may name the same layer; their
// contributions add.
func addSeed(seeds map[int][]float32, tap int, grad []float32) {
	if existing, ok := seeds[tap]; ok {
		for i, g := range grad {
			existing[i] += g
		}
		return
	}
	seeds[tap] = grad
}

// finite reports whether v is neither NaN nor infinite
func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
