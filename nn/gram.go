package nn

// Gram computes the style signature of an activation tensor: the
// channels are flattened over the spatial axes into a (C, H*W) matrix A
// and the result is the (C, C) product A·Aᵀ. The product is left
// unnormalized on purpose; the loss weighting downstream is tuned
// against this exact scale.
func Gram(t *Tensor) *Tensor {
	c, spatial := gramDims(t)
	a := t.Data

	g := NewTensor(c, c)
	for i := 0; i < c; i++ {
		rowI := a[i*spatial : (i+1)*spatial]
		for j := i; j < c; j++ {
			rowJ := a[j*spatial : (j+1)*spatial]
			sum := float32(0)
			for k := 0; k < spatial; k++ {
				sum += rowI[k] * rowJ[k]
			}
			g.Data[i*c+j] = sum
			g.Data[j*c+i] = sum
		}
	}
	return g
}

// GramBackward converts a gradient with respect to a Gram matrix into a
// gradient with respect to the activation that produced it:
// dL/dA = (dL/dG + (dL/dG)ᵀ) · A, returned flattened to the
// activation's element order.
func GramBackward(gradGram *Tensor, act *Tensor) []float32 {
	c, spatial := gramDims(act)
	a := act.Data
	dg := gradGram.Data

	gradAct := make([]float32, c*spatial)
	for i := 0; i < c; i++ {
		out := gradAct[i*spatial : (i+1)*spatial]
		for j := 0; j < c; j++ {
			s := dg[i*c+j] + dg[j*c+i]
			if s == 0 {
				continue
			}
			rowJ := a[j*spatial : (j+1)*spatial]
			for k := 0; k < spatial; k++ {
				out[k] += s * rowJ[k]
			}
		}
	}
	return gradAct
}

// gramDims squeezes an optional leading batch dimension of 1 and
// returns (channels, height*width).
func gramDims(t *Tensor) (int, int) {
	shape := t.Shape
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	return shape[0], shape[1] * shape[2]
}
