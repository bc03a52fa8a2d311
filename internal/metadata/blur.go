package metadata

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"

	"digistation/internal/capture"
)

// BlurEvaluator scores sharpness as the variance of the Laplacian of the
// grayscale image. Scores below Threshold are reported as blurry.
type BlurEvaluator struct {
	Enabled      bool
	Threshold    float64
	MaxDimension int
}

// Evaluate decodes path and scores it.
func (b BlurEvaluator) Evaluate(path string) (bool, float64, error) {
	if !b.Enabled {
		return false, 0, capture.ErrAdapterSkipped
	}
	f, err := os.Open(path)
	if err != nil {
		return false, 0, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return false, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	score := b.Score(img)
	return score < b.Threshold, score, nil
}

// Score returns the Laplacian variance of img after downscaling it to fit
// MaxDimension.
func (b BlurEvaluator) Score(img image.Image) float64 {
	if b.MaxDimension > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > b.MaxDimension || bounds.Dy() > b.MaxDimension {
			img = resize.Thumbnail(uint(b.MaxDimension), uint(b.MaxDimension), img, resize.Bilinear)
		}
	}
	return laplacianVariance(toGray(img))
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

func laplacianVariance(g *image.Gray) float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	var sum, sumSq float64
	n := 0
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			c := float64(g.GrayAt(x, y).Y)
			v := float64(g.GrayAt(x-1, y).Y) + float64(g.GrayAt(x+1, y).Y) +
				float64(g.GrayAt(x, y-1).Y) + float64(g.GrayAt(x, y+1).Y) - 4*c
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
