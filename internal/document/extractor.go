package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// Kind is the source format of an uploaded document.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// KindFromPath picks the extraction route from the file extension.
// Unknown extensions are treated as images, the way scans usually arrive.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF
	case ".txt", ".text", ".csv":
		return KindText
	default:
		return KindImage
	}
}

// ImageReader turns an image file into text (an OCR engine).
type ImageReader interface {
	ReadImage(ctx context.Context, path string) (string, error)
}

// maxTextBytes caps how much text a single document may contribute.
const maxTextBytes = 4 << 20

// Extractor reads text out of uploaded documents. It never fails: any
// problem is logged and yields empty text.
type Extractor struct {
	images ImageReader
	logger *slog.Logger
}

func NewExtractor(images ImageReader, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{images: images, logger: logger}
}

// ReadText returns the plain text of the document at path.
func (e *Extractor) ReadText(ctx context.Context, path string, kind Kind) string {
	var (
		text string
		err  error
	)

	switch kind {
	case KindPDF:
		text, err = readPDF(path)
	case KindText:
		text, err = readPlain(path)
	case KindImage:
		if e.images == nil {
			e.logger.Debug("no image reader configured, skipping extraction", "path", path)
			return ""
		}
		text, err = e.images.ReadImage(ctx, path)
	default:
		err = fmt.Errorf("unsupported document kind %q", kind)
	}

	if err != nil {
		e.logger.Warn("document text extraction failed", "path", path, "kind", kind, "error", err)
		return ""
	}
	return text
}

// ExtractProforma reads the document and parses vendor, terms and items.
func (e *Extractor) ExtractProforma(ctx context.Context, path string, kind Kind) Metadata {
	meta := ParseProforma(e.ReadText(ctx, path, kind))
	e.logger.Info("proforma extracted",
		"path", path,
		"kind", kind,
		"vendor_found", meta.Vendor != "",
		"items", len(meta.Items))
	return meta
}

func readPlain(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTextBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readPDF concatenates the text of every page. The pdf reader panics on
// some malformed files, so a panic is reported as an error.
func readPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, maxTextBytes)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// CommandImageReader shells out to a tesseract-compatible binary that
// accepts "<image> stdout" and prints the recognised text.
type CommandImageReader struct {
	Command string
	Timeout time.Duration
}

var ErrNoOCRCommand = errors.New("ocr command not configured")

func (c CommandImageReader) ReadImage(ctx context.Context, path string) (string, error) {
	if c.Command == "" {
		return "", ErrNoOCRCommand
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command, path, "stdout")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", c.Command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
