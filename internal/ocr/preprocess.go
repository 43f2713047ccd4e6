package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// preprocessImage cleans up a rendered page for recognition: grayscale,
// upscale tiny renders, denoise, bump contrast, then binarize with an Otsu
// threshold. The result is written next to the input and its path returned.
func preprocessImage(path string) (string, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return "", err
	}

	img := imaging.Grayscale(src)
	if img.Bounds().Dx() < 100 || img.Bounds().Dy() < 100 {
		img = imaging.Resize(img, img.Bounds().Dx()*2, 0, imaging.Lanczos)
	}
	img = imaging.Blur(img, 0.5)
	img = imaging.AdjustContrast(img, 20)
	bw := binarizeOtsu(img)

	out := path + ".prep.png"
	if err := imaging.Save(bw, out); err != nil {
		return "", err
	}
	return out, nil
}

// binarizeOtsu thresholds a grayscale image at the level that maximizes
// between-class variance over its histogram.
func binarizeOtsu(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(b)

	var hist [256]int
	total := b.Dx() * b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := src.NRGBAAt(x, y).R // grayscale input: R == G == B
			gray.SetGray(x, y, color.Gray{Y: v})
			hist[v]++
		}
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumB, wB float64
	var maxVar float64
	threshold := uint8(127)
	for i, n := range hist {
		wB += float64(n)
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(n)
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > maxVar {
			maxVar = between
			threshold = uint8(i)
		}
	}

	for i := range gray.Pix {
		if gray.Pix[i] > threshold {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}
