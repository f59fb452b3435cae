package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig is a two-block miniature of the VGG layout, small enough
// to run on synthetic inputs.
func testConfig() ExtractorConfig {
	return ExtractorConfig{
		Layers: []LayerSpec{
			Conv(3, 4), ReLU(), MaxPool(), // 0-2
			Conv(4, 8), ReLU(), // 3-4
		},
		StyleTaps:  []int{0, 3},
		ContentTap: 4,
	}
}

func TestExtractorTapShapes(t *testing.T) {
	e, err := NewExtractor(testConfig())
	require.NoError(t, err)
	e.RandomizeWeights(1)

	input := NewTensor(1, 3, 8, 8)
	for i := range input.Data {
		input.Data[i] = float32(i%7) / 7
	}

	pass, err := e.Forward(input)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4, 8, 8}, pass.Tap(0).Shape) // conv output, same spatial size
	assert.Equal(t, []int{1, 8, 4, 4}, pass.Tap(3).Shape) // after 2x2 pooling
	assert.Equal(t, []int{1, 8, 4, 4}, pass.Tap(4).Shape)
	assert.Nil(t, pass.Tap(1), "untapped layers are not retained")
}

func TestFeaturesMatchForwardTaps(t *testing.T) {
	e, err := NewExtractor(testConfig())
	require.NoError(t, err)
	e.RandomizeWeights(2)

	input := NewTensor(1, 3, 6, 6)
	for i := range input.Data {
		input.Data[i] = float32((i*13)%11) / 11
	}

	pass, err := e.Forward(input)
	require.NoError(t, err)
	feats, err := e.Features(input)
	require.NoError(t, err)

	require.Len(t, feats, 3)
	for _, tap := range []int{0, 3, 4} {
		assert.Equal(t, pass.Tap(tap).Data, feats[tap].Data, "tap %d", tap)
	}
}

func TestForwardDeterministic(t *testing.T) {
	e, err := NewExtractor(testConfig())
	require.NoError(t, err)
	e.RandomizeWeights(3)

	input := NewTensor(1, 3, 6, 6)
	for i := range input.Data {
		input.Data[i] = float32(i) / float32(len(input.Data))
	}

	a, err := e.Features(input)
	require.NoError(t, err)
	b, err := e.Features(input)
	require.NoError(t, err)

	for tap := range a {
		assert.Equal(t, a[tap].Data, b[tap].Data)
	}
}

func TestExtractorRejectsWrongChannelCount(t *testing.T) {
	e, err := NewExtractor(testConfig())
	require.NoError(t, err)

	_, err = e.Forward(NewTensor(1, 1, 8, 8))
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)

	_, err = e.Forward(NewTensor(3, 8, 8))
	require.ErrorAs(t, err, &shapeErr, "missing batch dimension")
}

func TestExtractorRejectsBadTap(t *testing.T) {
	cfg := testConfig()
	cfg.ContentTap = 99
	_, err := NewExtractor(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.StyleTaps = []int{-1}
	_, err = NewExtractor(cfg)
	assert.Error(t, err)
}

func TestExtractorRejectsChannelMismatch(t *testing.T) {
	cfg := ExtractorConfig{
		Layers:     []LayerSpec{Conv(3, 4), ReLU(), Conv(8, 8)},
		StyleTaps:  []int{0},
		ContentTap: 2,
	}
	_, err := NewExtractor(cfg)
	assert.Error(t, err)
}

func TestExtractorRejectsPoolToZero(t *testing.T) {
	e, err := NewExtractor(testConfig())
	require.NoError(t, err)

	_, err = e.Forward(NewTensor(1, 3, 1, 1))
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
}

// TestBackwardInputHandComputed checks the full backward chain against
// a case small enough to reason through: an identity convolution
// followed by ReLU and 2x2 pooling, with all-ones gradient seeds at the
// convolution output (tap 0) and the pool output (tap 2).
func TestBackwardInputHandComputed(t *testing.T) {
	e, err := NewExtractor(ExtractorConfig{
		Layers:     []LayerSpec{Conv(1, 1), ReLU(), MaxPool()},
		StyleTaps:  []int{0},
		ContentTap: 2,
	})
	require.NoError(t, err)

	// Identity kernel: center weight 1, bias 0.
	e.kernels[0][4] = 1

	// Strictly increasing 4x4 input, so every pool window selects its
	// bottom-right element and ReLU passes everything.
	input := NewTensor(1, 1, 4, 4)
	for i := range input.Data {
		input.Data[i] = float32(i+1) / 10
	}

	pass, err := e.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, input.Data, pass.Tap(0).Data, "identity kernel reproduces the input")
	assert.Equal(t, []float32{0.6, 0.8, 1.4, 1.6}, pass.Tap(2).Data)

	seeds := map[int][]float32{
		0: onesSlice(16),
		2: onesSlice(4),
	}
	grad := pass.BackwardInput(seeds)

	// Every pixel gets 1 from the tap-0 seed; pool-window maxima
	// (bottom-right of each 2x2 block) get another 1 routed through the
	// pool switches and the identity conv.
	want := []float32{
		1, 1, 1, 1,
		1, 2, 1, 2,
		1, 1, 1, 1,
		1, 2, 1, 2,
	}
	assert.Equal(t, want, grad)
}

func TestBackwardInputWithoutSeeds(t *testing.T) {
	e, err := NewExtractor(testConfig())
	require.NoError(t, err)
	e.RandomizeWeights(4)

	input := NewTensor(1, 3, 4, 4)
	pass, err := e.Forward(input)
	require.NoError(t, err)

	grad := pass.BackwardInput(nil)
	assert.Equal(t, make([]float32, 3*4*4), grad)
}

func TestVGG19FeaturesTable(t *testing.T) {
	cfg := VGG19Features()
	require.Len(t, cfg.Layers, 29)

	assert.Equal(t, []int{0, 5, 10, 19, 28}, cfg.StyleTaps)
	assert.Equal(t, 21, cfg.ContentTap)

	// Every tap lands on a convolution.
	for _, tap := range append(cfg.StyleTaps, cfg.ContentTap) {
		assert.Equal(t, LayerConv2D, cfg.Layers[tap].Kind, "layer %d", tap)
	}

	e, err := NewExtractor(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, e.InputChannels())
}

func onesSlice(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
