package normalizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// CountPages opens the PDF and returns its page count. The parser panics on
// some malformed inputs; those are reported as file processing errors.
func CountPages(path string) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = domain.WrapError(domain.ErrFileProcessing, "read pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, domain.WrapError(domain.ErrFileProcessing, "read pdf", err)
	}
	defer f.Close()

	count = reader.NumPage()
	if count <= 0 {
		return 0, domain.WrapError(domain.ErrFileProcessing, "read pdf", errors.New("pdf has no pages"))
	}
	return count, nil
}

// rasterize renders up to MaxPages pages and names them {stem}_page_{i}.png.
// Pages past the limit are dropped.
func (n *Normalizer) rasterize(ctx context.Context, pdfPath, workDir, stem string) ([]string, error) {
	total, err := CountPages(pdfPath)
	if err != nil {
		return nil, err
	}
	last := min(total, n.cfg.MaxPages)

	if n.renderer == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "render pdf", errors.New("no pdf renderer configured"))
	}
	prefix := filepath.Join(workDir, "render")
	if err := n.renderer.Render(ctx, pdfPath, prefix, 1, last, n.cfg.RenderDPI); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.WrapError(domain.ErrFileProcessing, "render pdf", err)
	}

	rendered, err := renderedPages(prefix)
	if err != nil {
		return nil, err
	}
	if len(rendered) == 0 {
		return nil, domain.WrapError(domain.ErrFileProcessing, "render pdf", errors.New("renderer produced no pages"))
	}
	if len(rendered) > last {
		rendered = rendered[:last]
	}

	pages := make([]string, 0, len(rendered))
	for i, src := range rendered {
		dst := filepath.Join(workDir, fmt.Sprintf("%s_page_%d.png", stem, i+1))
		if err := os.Rename(src, dst); err != nil {
			return nil, fmt.Errorf("name page: %w", err)
		}
		if err := downscalePNG(dst, n.cfg.MaxImageDim); err != nil {
			return nil, err
		}
		pages = append(pages, dst)
	}
	return pages, nil
}

// renderedPages lists prefix-N.png files in page order. pdftoppm zero-pads N
// to the width of the last page number.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	type page struct {
		num  int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(m, prefix+"-"), ".png")
		num, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		pages = append(pages, page{num: num, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
