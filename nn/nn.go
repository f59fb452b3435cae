// Package nn provides the numeric core for gradient-based image
// stylization: a flat float32 tensor type, a frozen convolutional
// feature extractor with per-layer activation taps, Gram-matrix
// utilities, and an Adam optimizer over a single pixel buffer.
//
// The extractor is inference-only: its weights never accumulate
// gradients. Backpropagation exists solely to route loss gradients
// from tapped activations down to the input image, which is the one
// trainable quantity in the whole package.
//
// Example usage:
//
//	ext, _ := nn.NewExtractor(nn.VGG19Features())
//	if err := ext.LoadWeights("vgg19.safetensors"); err != nil { ... }
//
//	pass, _ := ext.Forward(img)
//	act := pass.Tap(ext.ContentTap())
//	grad := pass.BackwardInput(seeds)
package nn
