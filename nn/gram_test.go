package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGramKnownValues(t *testing.T) {
	// Two channels over a 2x2 spatial grid. Flattened rows:
	// A = [1 2 3 4; 5 6 7 8], so A·Aᵀ = [30 70; 70 174].
	act := NewTensorFromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 1, 2, 2, 2)
	require.NotNil(t, act)

	g := Gram(act)
	assert.Equal(t, []int{2, 2}, g.Shape)
	assert.Equal(t, []float32{30, 70, 70, 174}, g.Data)
}

func TestGramSqueezesBatchDimension(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	with := Gram(NewTensorFromSlice(data, 1, 2, 2, 2))
	without := Gram(NewTensorFromSlice(data, 2, 2, 2))

	assert.Equal(t, without.Data, with.Data)
}

func TestGramIsUnnormalized(t *testing.T) {
	// Doubling the spatial extent with repeated values must double the
	// Gram entries; a normalized product would leave them unchanged.
	small := Gram(NewTensorFromSlice([]float32{1, 2, 3, 4}, 2, 1, 2))
	big := Gram(NewTensorFromSlice([]float32{1, 2, 1, 2, 3, 4, 3, 4}, 2, 1, 4))

	for i := range small.Data {
		assert.Equal(t, 2*small.Data[i], big.Data[i])
	}
}

func TestGramBackward(t *testing.T) {
	// Single channel: G = [a²+b²], so with dL/dG = [1] the activation
	// gradient is exactly 2·[a, b].
	act := NewTensorFromSlice([]float32{3, 5}, 1, 1, 2, 1)
	gradGram := NewTensorFromSlice([]float32{1}, 1, 1)

	grad := GramBackward(gradGram, act)
	assert.Equal(t, []float32{6, 10}, grad)
}

func TestGramBackwardCrossChannel(t *testing.T) {
	// Two channels, one spatial element: A = [a; b], G = [a² ab; ab b²].
	// With dL/dG = I, dL/dA = (I + I)·A = 2·[a; b].
	act := NewTensorFromSlice([]float32{2, 7}, 1, 2, 1, 1)
	gradGram := NewTensorFromSlice([]float32{1, 0, 0, 1}, 2, 2)

	grad := GramBackward(gradGram, act)
	assert.Equal(t, []float32{4, 14}, grad)
}
