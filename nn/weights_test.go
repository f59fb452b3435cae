package nn

import (
	"bytes"
	"testing"

	"github.com/nlpodyssey/safetensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsRoundTrip(t *testing.T) {
	src, err := NewExtractor(testConfig())
	require.NoError(t, err)
	src.RandomizeWeights(42)
	src.biases[0][1] = 0.25

	var buf bytes.Buffer
	require.NoError(t, src.SaveWeights(&buf))

	dst, err := NewExtractor(testConfig())
	require.NoError(t, err)
	require.NoError(t, dst.LoadWeightsFromBytes(buf.Bytes()))

	assert.Equal(t, src.kernels, dst.kernels)
	assert.Equal(t, src.biases, dst.biases)
}

func TestLoadWeightsMissingTensor(t *testing.T) {
	data, err := safetensors.Serialize(map[string]safetensors.TensorView{}, nil)
	require.NoError(t, err)

	e, err := NewExtractor(testConfig())
	require.NoError(t, err)

	err = e.LoadWeightsFromBytes(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "features.0.weight")
}

func TestLoadWeightsShapeMismatch(t *testing.T) {
	// Serialize weights for the test config, then try to load them
	// into an extractor with a different filter count.
	src, err := NewExtractor(testConfig())
	require.NoError(t, err)
	src.RandomizeWeights(7)

	var buf bytes.Buffer
	require.NoError(t, src.SaveWeights(&buf))

	other, err := NewExtractor(ExtractorConfig{
		Layers:     []LayerSpec{Conv(3, 16)},
		StyleTaps:  []int{0},
		ContentTap: 0,
	})
	require.NoError(t, err)

	err = other.LoadWeightsFromBytes(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape")
}

func TestLoadWeightsGarbage(t *testing.T) {
	e, err := NewExtractor(testConfig())
	require.NoError(t, err)

	err = e.LoadWeightsFromBytes([]byte("definitely not safetensors"))
	assert.Error(t, err)
}
