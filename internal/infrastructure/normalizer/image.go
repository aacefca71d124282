package normalizer

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

func checkImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return domain.WrapError(domain.ErrFileProcessing, "decode image", err)
	}
	return nil
}

// fitWithin returns the size of a w x h image scaled to fit maxDim on its
// longer side, and whether scaling is needed.
func fitWithin(w, h, maxDim int) (int, int, bool) {
	if w <= maxDim && h <= maxDim {
		return w, h, false
	}
	if w >= h {
		return maxDim, max(h*maxDim/w, 1), true
	}
	return max(w*maxDim/h, 1), maxDim, true
}

// downscalePNG rewrites the PNG at path in place when it exceeds maxDim.
func downscalePNG(path string, maxDim int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return domain.WrapError(domain.ErrFileProcessing, "decode page", err)
	}

	b := src.Bounds()
	w, h, scale := fitWithin(b.Dx(), b.Dy(), maxDim)
	if !scale {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rewrite page: %w", err)
	}
	defer out.Close()
	if err := png.Encode(out, dst); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return nil
}
