package nn

// conv2DForward performs 2D convolution on a single image.
// input shape: [inChannels][height][width] (flattened)
// output shape: [filters][outHeight][outWidth] (flattened)
func conv2DForward(input []float32, kernel, bias []float32,
	inC, inH, inW, kSize, stride, padding, filters int) []float32 {

	outH := (inH+2*padding-kSize)/stride + 1
	outW := (inW+2*padding-kSize)/stride + 1

	output := make([]float32, filters*outH*outW)

	for f := 0; f < filters; f++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				sum := bias[f]

				for ic := 0; ic < inC; ic++ {
					for kh := 0; kh < kSize; kh++ {
						for kw := 0; kw < kSize; kw++ {
							ih := oh*stride + kh - padding
							iw := ow*stride + kw - padding

							if ih >= 0 && ih < inH && iw >= 0 && iw < inW {
								inputIdx := ic*inH*inW + ih*inW + iw
								kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw
								sum += input[inputIdx] * kernel[kernelIdx]
							}
						}
					}
				}

				output[f*outH*outW+oh*outW+ow] = sum
			}
		}
	}

	return output
}

// conv2DBackwardInput computes the gradient with respect to the
// convolution input only. The kernel is frozen, so no kernel or bias
// gradients are accumulated.
func conv2DBackwardInput(gradOutput []float32, kernel []float32,
	inC, inH, inW, kSize, stride, padding, filters int) []float32 {

	outH := (inH+2*padding-kSize)/stride + 1
	outW := (inW+2*padding-kSize)/stride + 1

	gradInput := make([]float32, inC*inH*inW)

	for f := 0; f < filters; f++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				gradOut := gradOutput[f*outH*outW+oh*outW+ow]
				if gradOut == 0 {
					continue
				}

				for ic := 0; ic < inC; ic++ {
					for kh := 0; kh < kSize; kh++ {
						for kw := 0; kw < kSize; kw++ {
							ih := oh*stride + kh - padding
							iw := ow*stride + kw - padding

							if ih >= 0 && ih < inH && iw >= 0 && iw < inW {
								inputIdx := ic*inH*inW + ih*inW + iw
								kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw
								gradInput[inputIdx] += gradOut * kernel[kernelIdx]
							}
						}
					}
				}
			}
		}
	}

	return gradInput
}
