package nn

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/nlpodyssey/safetensors"
)

// LoadWeights reads extractor weights from a safetensors file.
// Tensor names follow the torchvision export convention:
// "features.N.weight" and "features.N.bias" for the convolution at
// layer index N, weight shape [out, in, k, k], dtype F32.
func (e *Extractor) LoadWeights(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	return e.LoadWeightsFromBytes(data)
}

// LoadWeightsFromBytes populates the extractor from in-memory
// safetensors data.
func (e *Extractor) LoadWeightsFromBytes(data []byte) error {
	st, err := safetensors.Deserialize(data)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	for i, layer := range e.layers {
		if layer.Kind != LayerConv2D {
			continue
		}

		kernel, err := extractF32(st, fmt.Sprintf("features.%d.weight", i),
			[]uint64{uint64(layer.OutChannels), uint64(layer.InChannels), uint64(layer.KernelSize), uint64(layer.KernelSize)})
		if err != nil {
			return err
		}
		bias, err := extractF32(st, fmt.Sprintf("features.%d.bias", i), []uint64{uint64(layer.OutChannels)})
		if err != nil {
			return err
		}

		copy(e.kernels[i], kernel)
		copy(e.biases[i], bias)
	}

	return nil
}

// SaveWeights serializes the extractor's convolution weights to w in
// safetensors format, using the same naming convention LoadWeights
// expects. Useful for producing test fixtures and converted weight
// files.
func (e *Extractor) SaveWeights(w io.Writer) error {
	views := make(map[string]safetensors.TensorView)

	for i, layer := range e.layers {
		if layer.Kind != LayerConv2D {
			continue
		}

		kv, err := safetensors.NewTensorView(safetensors.F32,
			[]uint64{uint64(layer.OutChannels), uint64(layer.InChannels), uint64(layer.KernelSize), uint64(layer.KernelSize)},
			f32ToBytes(e.kernels[i]))
		if err != nil {
			return fmt.Errorf("save weights: layer %d kernel: %w", i, err)
		}
		views[fmt.Sprintf("features.%d.weight", i)] = kv

		bv, err := safetensors.NewTensorView(safetensors.F32,
			[]uint64{uint64(layer.OutChannels)}, f32ToBytes(e.biases[i]))
		if err != nil {
			return fmt.Errorf("save weights: layer %d bias: %w", i, err)
		}
		views[fmt.Sprintf("features.%d.bias", i)] = bv
	}

	return safetensors.SerializeToWriter(views, nil, w)
}

// extractF32 pulls one named F32 tensor out of a deserialized file and
// checks its shape against the layer table.
func extractF32(st safetensors.SafeTensors, name string, wantShape []uint64) ([]float32, error) {
	tv, ok := st.Tensor(name)
	if !ok {
		return nil, fmt.Errorf("load weights: tensor %q not found", name)
	}
	if tv.DType() != safetensors.F32 {
		return nil, fmt.Errorf("load weights: tensor %q has dtype %v, want F32", name, tv.DType())
	}

	shape := tv.Shape()
	if len(shape) != len(wantShape) {
		return nil, fmt.Errorf("load weights: tensor %q has shape %v, want %v", name, shape, wantShape)
	}
	for d := range shape {
		if shape[d] != wantShape[d] {
			return nil, fmt.Errorf("load weights: tensor %q has shape %v, want %v", name, shape, wantShape)
		}
	}

	raw := tv.Data()
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return out, nil
}

// f32ToBytes encodes a float32 slice as little-endian bytes
func f32ToBytes(v []float32) []byte {
	out := make([]byte, 0, len(v)*4)
	for _, f := range v {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}
