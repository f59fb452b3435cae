package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// LayerKind defines the type of extractor layer
type LayerKind int

const (
	LayerConv2D    LayerKind = 0 // 3x3 convolution
	LayerReLU      LayerKind = 1 // element-wise ReLU
	LayerMaxPool2D LayerKind = 2 // 2x2 stride-2 max pooling
)

// LayerSpec describes one layer in the extractor's sequential stack
type LayerSpec struct {
	Kind        LayerKind
	InChannels  int // Conv2D
	OutChannels int // Conv2D
	KernelSize  int // Conv2D / MaxPool2D
	Stride      int
	Padding     int // Conv2D
}

// Conv returns a 3x3 stride-1 pad-1 convolution spec
func Conv(in, out int) LayerSpec {
	return LayerSpec{Kind: LayerConv2D, InChannels: in, OutChannels: out, KernelSize: 3, Stride: 1, Padding: 1}
}

// ReLU returns an element-wise ReLU spec
func ReLU() LayerSpec {
	return LayerSpec{Kind: LayerReLU}
}

// MaxPool returns a 2x2 stride-2 max pooling spec
func MaxPool() LayerSpec {
	return LayerSpec{Kind: LayerMaxPool2D, KernelSize: 2, Stride: 2}
}

// ExtractorConfig pairs a layer stack with the tapped layer indices.
// A tap at index i captures the output of layer i.
type ExtractorConfig struct {
	Layers     []LayerSpec
	StyleTaps  []int
	ContentTap int
}

// VGG19Features returns the canonical VGG19 feature stack up to and
// including conv5_1, with style taps at the first convolution of each
// block and the content tap at conv4_2. Layer indices match the
// torchvision "features" module numbering, so pretrained weight files
// exported from it load without remapping.
func VGG19Features() ExtractorConfig {
	return ExtractorConfig{
		Layers: []LayerSpec{
			Conv(3, 64), ReLU(), Conv(64, 64), ReLU(), MaxPool(), // 0-4
			Conv(64, 128), ReLU(), Conv(128, 128), ReLU(), MaxPool(), // 5-9
			Conv(128, 256), ReLU(), Conv(256, 256), ReLU(), // 10-13
			Conv(256, 256), ReLU(), Conv(256, 256), ReLU(), MaxPool(), // 14-18
			Conv(256, 512), ReLU(), Conv(512, 512), ReLU(), // 19-22
			Conv(512, 512), ReLU(), Conv(512, 512), ReLU(), MaxPool(), // 23-27
			Conv(512, 512), // 28
		},
		StyleTaps:  []int{0, 5, 10, 19, 28},
		ContentTap: 21,
	}
}

// Extractor is a frozen sequential convolutional network used only for
// its intermediate activations. Weights are read-only after loading, so
// one Extractor may be shared by concurrent forward passes; all mutable
// per-invocation state lives in the Pass returned by Forward.
type Extractor struct {
	layers     []LayerSpec
	kernels    [][]float32 // per layer, nil for non-conv layers
	biases     [][]float32
	styleTaps  []int
	contentTap int
	tapped     map[int]bool
	lastTap    int // deepest tapped layer; later layers never run
	inChannels int
}

// NewExtractor validates the configuration and allocates weight
// buffers. Weights start zeroed: call LoadWeights or RandomizeWeights
// before running a forward pass.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if len(cfg.Layers) == 0 {
		return nil, fmt.Errorf("extractor: empty layer stack")
	}
	if cfg.Layers[0].Kind != LayerConv2D {
		return nil, fmt.Errorf("extractor: first layer must be a convolution")
	}

	tapped := make(map[int]bool)
	lastTap := 0
	for _, t := range append(append([]int{}, cfg.StyleTaps...), cfg.ContentTap) {
		if t < 0 || t >= len(cfg.Layers) {
			return nil, fmt.Errorf("extractor: tap index %d out of range [0, %d)", t, len(cfg.Layers))
		}
		tapped[t] = true
		if t > lastTap {
			lastTap = t
		}
	}

	e := &Extractor{
		layers:     cfg.Layers,
		kernels:    make([][]float32, len(cfg.Layers)),
		biases:     make([][]float32, len(cfg.Layers)),
		styleTaps:  append([]int{}, cfg.StyleTaps...),
		contentTap: cfg.ContentTap,
		tapped:     tapped,
		lastTap:    lastTap,
		inChannels: cfg.Layers[0].InChannels,
	}

	channels := e.inChannels
	for i, layer := range cfg.Layers {
		if layer.Kind != LayerConv2D {
			continue
		}
		if layer.InChannels != channels {
			return nil, fmt.Errorf("extractor: layer %d expects %d input channels, previous layer produces %d",
				i, layer.InChannels, channels)
		}
		e.kernels[i] = make([]float32, layer.OutChannels*layer.InChannels*layer.KernelSize*layer.KernelSize)
		e.biases[i] = make([]float32, layer.OutChannels)
		channels = layer.OutChannels
	}

	return e, nil
}

// StyleTaps returns the configured style tap indices
func (e *Extractor) StyleTaps() []int {
	return append([]int{}, e.styleTaps...)
}

// ContentTap returns the configured content tap index
func (e *Extractor) ContentTap() int {
	return e.contentTap
}

// InputChannels returns the channel count the extractor expects
func (e *Extractor) InputChannels() int {
	return e.inChannels
}

// RandomizeWeights fills every convolution with He-initialized values
// from a seeded source. Used for test fixtures and weight-free smoke
// runs; real use loads pretrained weights.
func (e *Extractor) RandomizeWeights(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i, layer := range e.layers {
		if layer.Kind != LayerConv2D {
			continue
		}
		stddev := float32(math.Sqrt(2.0 / float64(layer.InChannels*layer.KernelSize*layer.KernelSize)))
		for j := range e.kernels[i] {
			e.kernels[i][j] = float32(rng.NormFloat64()) * stddev
		}
		for j := range e.biases[i] {
			e.biases[i][j] = 0
		}
	}
}

// Pass holds the per-invocation state of one forward run: every
// intermediate activation and the pooling switches, retained so
// BackwardInput can route tap gradients down to the input pixels.
type Pass struct {
	e        *Extractor
	acts     [][]float32 // acts[0] = input, acts[i+1] = output of layer i
	dims     [][3]int    // [channels, height, width] per entry in acts
	switches [][]int32   // per layer, pooling layers only
}

// Forward runs the extractor on x and retains everything BackwardInput
// needs. Gradients never accumulate on the extractor's weights; the
// backward pass exists only to reach the input.
func (e *Extractor) Forward(x *Tensor) (*Pass, error) {
	return e.run(x, true)
}

// Features runs the extractor on x and returns only the tapped
// activations, discarding intermediate state. Used for the reference
// images, which need no backward pass.
func (e *Extractor) Features(x *Tensor) (map[int]*Tensor, error) {
	pass, err := e.run(x, false)
	if err != nil {
		return nil, err
	}
	taps := make(map[int]*Tensor, len(e.tapped))
	for i := range e.tapped {
		taps[i] = pass.Tap(i)
	}
	return taps, nil
}

func (e *Extractor) run(x *Tensor, retain bool) (*Pass, error) {
	if len(x.Shape) != 4 || x.Shape[0] != 1 {
		return nil, &ShapeError{Op: "extractor forward", Detail: fmt.Sprintf("want shape [1 C H W], got %v", x.Shape)}
	}
	if x.Shape[1] != e.inChannels {
		return nil, &ShapeError{Op: "extractor forward",
			Detail: fmt.Sprintf("want %d input channels, got %d", e.inChannels, x.Shape[1])}
	}
	if x.Shape[2] <= 0 || x.Shape[3] <= 0 {
		return nil, &ShapeError{Op: "extractor forward", Detail: fmt.Sprintf("degenerate spatial size %v", x.Shape[2:])}
	}

	n := e.lastTap + 1
	pass := &Pass{
		e:        e,
		acts:     make([][]float32, n+1),
		dims:     make([][3]int, n+1),
		switches: make([][]int32, n),
	}

	cur := x.Data
	c, h, w := x.Shape[1], x.Shape[2], x.Shape[3]
	pass.acts[0] = cur
	pass.dims[0] = [3]int{c, h, w}

	for i := 0; i < n; i++ {
		layer := e.layers[i]
		switch layer.Kind {
		case LayerConv2D:
			cur = conv2DForward(cur, e.kernels[i], e.biases[i],
				c, h, w, layer.KernelSize, layer.Stride, layer.Padding, layer.OutChannels)
			h = (h+2*layer.Padding-layer.KernelSize)/layer.Stride + 1
			w = (w+2*layer.Padding-layer.KernelSize)/layer.Stride + 1
			c = layer.OutChannels
		case LayerReLU:
			cur = reluForward(cur)
		case LayerMaxPool2D:
			outH := (h-layer.KernelSize)/layer.Stride + 1
			outW := (w-layer.KernelSize)/layer.Stride + 1
			if outH <= 0 || outW <= 0 {
				return nil, &ShapeError{Op: "extractor forward",
					Detail: fmt.Sprintf("layer %d pools %dx%d input down to zero size", i, h, w)}
			}
			var sw []int32
			cur, sw = maxPool2DForward(cur, c, h, w, layer.KernelSize, layer.Stride)
			h, w = outH, outW
			if retain {
				pass.switches[i] = sw
			}
		}

		pass.acts[i+1] = cur
		pass.dims[i+1] = [3]int{c, h, w}
	}

	if !retain {
		// Keep only the tapped buffers reachable.
		for i := 0; i < n; i++ {
			if !e.tapped[i] {
				pass.acts[i+1] = nil
			}
		}
		pass.acts[0] = nil
	}

	return pass, nil
}

// Tap returns the activation captured at a tapped layer index.
// Returns nil for layers that were not configured as taps.
func (p *Pass) Tap(layer int) *Tensor {
	if layer < 0 || layer+1 >= len(p.acts) || !p.e.tapped[layer] {
		return nil
	}
	d := p.dims[layer+1]
	return NewTensorFromSlice(p.acts[layer+1], 1, d[0], d[1], d[2])
}

// BackwardInput backpropagates per-tap output gradients down to the
// input tensor and returns the input gradient. seeds maps tapped layer
// indices to gradients of the loss with respect to that layer's output,
// flattened to the activation's element order.
func (p *Pass) BackwardInput(seeds map[int][]float32) []float32 {
	deepest := -1
	for layer := range seeds {
		if layer > deepest {
			deepest = layer
		}
	}
	if deepest < 0 {
		d := p.dims[0]
		return make([]float32, d[0]*d[1]*d[2])
	}

	grad := make([]float32, len(seeds[deepest]))
	copy(grad, seeds[deepest])

	for i := deepest; i >= 0; i-- {
		if i < deepest {
			if seed, ok := seeds[i]; ok {
				for j, g := range seed {
					grad[j] += g
				}
			}
		}

		layer := p.e.layers[i]
		in := p.dims[i]
		switch layer.Kind {
		case LayerConv2D:
			grad = conv2DBackwardInput(grad, p.e.kernels[i],
				in[0], in[1], in[2], layer.KernelSize, layer.Stride, layer.Padding, layer.OutChannels)
		case LayerReLU:
			grad = reluBackward(grad, p.acts[i])
		case LayerMaxPool2D:
			grad = maxPool2DBackward(grad, p.switches[i], in[0]*in[1]*in[2])
		}
	}

	return grad
}
