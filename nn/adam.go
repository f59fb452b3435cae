package nn

import (
	"math"
)

// Adam is a first-order adaptive optimizer over a single flat parameter
// buffer. It is plain Adam (no weight decay): the only parameter it
// ever manages here is an image's pixel buffer, which has nothing to
// regularize.
type Adam struct {
	lr      float32
	beta1   float32
	beta2   float32
	epsilon float32
	step    int

	// First and second moment estimates, lazily sized on first Step
	m []float32
	v []float32
}

// NewAdam creates an Adam optimizer with the standard moment decay
// rates (beta1=0.9, beta2=0.999, epsilon=1e-8)
func NewAdam(learningRate float32) *Adam {
	return &Adam{
		lr:      learningRate,
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-8,
	}
}

// Step applies one in-place update to params using grads.
// params and grads must have the same length across all calls.
func (opt *Adam) Step(params, grads []float32) {
	if opt.m == nil {
		opt.m = make([]float32, len(params))
		opt.v = make([]float32, len(params))
	}

	opt.step++
	biasCorrection1 := 1.0 - float32(math.Pow(float64(opt.beta1), float64(opt.step)))
	biasCorrection2 := 1.0 - float32(math.Pow(float64(opt.beta2), float64(opt.step)))

	for j := range params {
		grad := grads[j]

		opt.m[j] = opt.beta1*opt.m[j] + (1-opt.beta1)*grad
		opt.v[j] = opt.beta2*opt.v[j] + (1-opt.beta2)*grad*grad

		mHat := opt.m[j] / biasCorrection1
		vHat := opt.v[j] / biasCorrection2

		params[j] -= opt.lr * mHat / (float32(math.Sqrt(float64(vHat))) + opt.epsilon)
	}
}

// Reset clears optimizer state
func (opt *Adam) Reset() {
	opt.step = 0
	opt.m = nil
	opt.v = nil
}
