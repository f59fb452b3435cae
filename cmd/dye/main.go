// Command dye runs neural style transfer from the command line: it
// re-paints a content image with the texture statistics of a style
// image, using a pretrained VGG19 feature extractor in safetensors
// format.
//
//	dye -content photo.jpg -style painting.jpg -weights vgg19.safetensors -out result.png
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/openfluke/dye/imaging"
	"github.com/openfluke/dye/nn"
	"github.com/openfluke/dye/transfer"
)

func main() {
	var (
		contentPath = flag.String("content", "", "content image (png/jpeg)")
		stylePath   = flag.String("style", "", "style image (png/jpeg)")
		outPath     = flag.String("out", "out.png", "output image path; format follows the extension")
		weightsPath = flag.String("weights", "vgg19.safetensors", "pretrained extractor weights")

		steps         = flag.Int("steps", 200, "optimization iterations")
		styleWeight   = flag.Float64("style-weight", 1e6, "style loss weight")
		contentWeight = flag.Float64("content-weight", 1, "content loss weight")
		maxDim        = flag.Int("max-dim", 512, "downscale content so its larger side fits this")
		learningRate  = flag.Float64("lr", 0.02, "Adam learning rate")
		logEvery      = flag.Int("log-every", 20, "print loss every N steps (0 disables)")
	)
	flag.Parse()

	if *contentPath == "" || *stylePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ext, err := nn.NewExtractor(nn.VGG19Features())
	if err != nil {
		log.Fatalf("build extractor: %v", err)
	}
	if err := ext.LoadWeights(*weightsPath); err != nil {
		log.Fatalf("%v", err)
	}

	content, err := os.Open(*contentPath)
	if err != nil {
		log.Fatalf("open content image: %v", err)
	}
	defer content.Close()

	style, err := os.Open(*stylePath)
	if err != nil {
		log.Fatalf("open style image: %v", err)
	}
	defer style.Close()

	opts := transfer.Options{
		NumSteps:      *steps,
		StyleWeight:   float32(*styleWeight),
		ContentWeight: float32(*contentWeight),
		MaxDimension:  *maxDim,
		LearningRate:  float32(*learningRate),
	}
	if *logEvery > 0 {
		opts.OnStep = func(step int, loss float32) {
			if step%*logEvery == 0 || step == *steps-1 {
				log.Printf("step %d/%d loss %.4g", step, *steps, loss)
			}
		}
	}

	result, err := transfer.Run(ext, content, style, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}

	format := strings.TrimPrefix(filepath.Ext(*outPath), ".")
	if format == "" {
		format = "png"
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer out.Close()

	if err := imaging.Encode(out, result, format); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("wrote %s", *outPath)
}
