// Package normalizer turns uploaded files into page images: images are used
// as-is, PDFs are rasterized page by page.
package normalizer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

const (
	defaultMaxUploadBytes = 20 << 20
	defaultMaxPages       = 10
	defaultMaxImageDim    = 2000
	defaultRenderDPI      = 150
)

type Config struct {
	MaxUploadBytes int64
	MaxPages       int
	MaxImageDim    int
	RenderDPI      int
}

func (c Config) normalize() Config {
	out := c
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = defaultMaxUploadBytes
	}
	if out.MaxPages <= 0 {
		out.MaxPages = defaultMaxPages
	}
	if out.MaxImageDim <= 0 {
		out.MaxImageDim = defaultMaxImageDim
	}
	if out.RenderDPI <= 0 {
		out.RenderDPI = defaultRenderDPI
	}
	return out
}

// Normalizer implements ports.FileNormalizer.
type Normalizer struct {
	cfg      Config
	renderer Renderer
}

func New(cfg Config, renderer Renderer) *Normalizer {
	return &Normalizer{cfg: cfg.normalize(), renderer: renderer}
}

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pdfMagic  = []byte("%PDF-")
)

// Sniff detects the file type from its leading bytes.
func Sniff(head []byte) (domain.FileType, bool) {
	switch {
	case bytes.HasPrefix(head, pngMagic):
		return domain.FileTypePNG, true
	case bytes.HasPrefix(head, jpegMagic):
		return domain.FileTypeJPEG, true
	case bytes.HasPrefix(head, pdfMagic):
		return domain.FileTypePDF, true
	default:
		return "", false
	}
}

func (n *Normalizer) Normalize(ctx context.Context, file domain.UploadedFile, workDir string) (domain.NormalizedDocument, error) {
	if file.Body == nil {
		return domain.NormalizedDocument{}, domain.WrapError(domain.ErrInvalidInput, "normalize", errors.New("empty upload body"))
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return domain.NormalizedDocument{}, fmt.Errorf("create work dir: %w", err)
	}

	stem := fileStem(file.Filename)
	src, hash, err := n.spool(file.Body, filepath.Join(workDir, stem+".upload"))
	if err != nil {
		return domain.NormalizedDocument{}, err
	}

	head, err := readHead(src, 8)
	if err != nil {
		return domain.NormalizedDocument{}, domain.WrapError(domain.ErrFileProcessing, "normalize", err)
	}
	fileType, ok := Sniff(head)
	if !ok {
		return domain.NormalizedDocument{}, domain.WrapError(domain.ErrFileProcessing, "normalize",
			fmt.Errorf("unsupported file content in %q", file.Filename))
	}

	doc := domain.NormalizedDocument{
		Filename:    file.Filename,
		FileType:    fileType,
		Present:     true,
		ContentHash: hash,
		WorkDir:     workDir,
	}

	switch fileType {
	case domain.FileTypePDF:
		doc.FilePath = filepath.Join(workDir, stem+".pdf")
		if err := os.Rename(src, doc.FilePath); err != nil {
			return domain.NormalizedDocument{}, fmt.Errorf("place upload: %w", err)
		}
		pages, err := n.rasterize(ctx, doc.FilePath, workDir, stem)
		if err != nil {
			return domain.NormalizedDocument{}, err
		}
		doc.PageImagePaths = pages
	default:
		doc.FilePath = filepath.Join(workDir, stem+"."+string(fileType))
		if err := os.Rename(src, doc.FilePath); err != nil {
			return domain.NormalizedDocument{}, fmt.Errorf("place upload: %w", err)
		}
		if err := checkImage(doc.FilePath); err != nil {
			return domain.NormalizedDocument{}, err
		}
		doc.PageImagePaths = []string{doc.FilePath}
	}
	doc.PageCount = len(doc.PageImagePaths)
	return doc, nil
}

// spool streams the body to disk, hashing as it goes, and stops one byte past
// the limit so oversized uploads are never fully buffered.
func (n *Normalizer) spool(body io.Reader, path string) (string, string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(body, n.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", "", domain.WrapError(domain.ErrFileProcessing, "read upload", err)
	}
	if written > n.cfg.MaxUploadBytes {
		return "", "", domain.WrapError(domain.ErrPayloadTooLarge, "read upload",
			fmt.Errorf("upload exceeds %d bytes", n.cfg.MaxUploadBytes))
	}
	if written == 0 {
		return "", "", domain.WrapError(domain.ErrFileProcessing, "read upload", errors.New("empty file"))
	}
	return path, hex.EncodeToString(h.Sum(nil)), nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:read], nil
}

func fileStem(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "_" {
		return "upload"
	}
	return base
}
