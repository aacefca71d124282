package normalizer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Renderer rasterizes pages first..last of a PDF to PNG files named
// outPrefix-N.png.
type Renderer interface {
	Render(ctx context.Context, pdfPath, outPrefix string, first, last, dpi int) error
}

// Pdftoppm renders with the poppler pdftoppm binary.
type Pdftoppm struct {
	Path string
}

func NewPdftoppm(path string) *Pdftoppm {
	if strings.TrimSpace(path) == "" {
		path = "pdftoppm"
	}
	return &Pdftoppm{Path: path}
}

func (p *Pdftoppm) Render(ctx context.Context, pdfPath, outPrefix string, first, last, dpi int) error {
	cmd := exec.CommandContext(ctx, p.Path,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(first),
		"-l", strconv.Itoa(last),
		pdfPath, outPrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("pdftoppm: %w", err)
		}
		return fmt.Errorf("pdftoppm: %w: %s", err, msg)
	}
	return nil
}
