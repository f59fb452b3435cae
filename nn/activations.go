package nn

// reluForward applies ReLU element-wise
func reluForward(input []float32) []float32 {
	output := make([]float32, len(input))
	for i, v := range input {
		if v > 0 {
			output[i] = v
		}
	}
	return output
}

// reluBackward routes gradients through ReLU.
// preActivation is the input the forward pass saw.
func reluBackward(gradOutput, preActivation []float32) []float32 {
	gradInput := make([]float32, len(gradOutput))
	for i, v := range preActivation {
		if v > 0 {
			gradInput[i] = gradOutput[i]
		}
	}
	return gradInput
}
