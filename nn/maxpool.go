package nn

// maxPool2DForward performs max pooling on a single image and records
// the flat input index of each selected maximum ("switches"), which the
// backward pass uses to route gradients.
// input shape: [channels][height][width] (flattened)
// output shape: [channels][outHeight][outWidth] (flattened)
func maxPool2DForward(input []float32, channels, inH, inW, kSize, stride int) ([]float32, []int32) {
	outH := (inH-kSize)/stride + 1
	outW := (inW-kSize)/stride + 1

	output := make([]float32, channels*outH*outW)
	switches := make([]int32, channels*outH*outW)

	for c := 0; c < channels; c++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				best := float32(0)
				bestIdx := -1

				for kh := 0; kh < kSize; kh++ {
					for kw := 0; kw < kSize; kw++ {
						ih := oh*stride + kh
						iw := ow*stride + kw
						inputIdx := c*inH*inW + ih*inW + iw
						if bestIdx < 0 || input[inputIdx] > best {
							best = input[inputIdx]
							bestIdx = inputIdx
						}
					}
				}

				outputIdx := c*outH*outW + oh*outW + ow
				output[outputIdx] = best
				switches[outputIdx] = int32(bestIdx)
			}
		}
	}

	return output, switches
}

// maxPool2DBackward scatters output gradients back to the input
// positions recorded in switches.
func maxPool2DBackward(gradOutput []float32, switches []int32, inputSize int) []float32 {
	gradInput := make([]float32, inputSize)
	for i, g := range gradOutput {
		gradInput[switches[i]] += g
	}
	return gradInput
}
