package closet

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	msgNotImage      = "The file introduced is not an image. Please upload an image file."
	msgImageRequired = "An image is required."
	msgInvalidName   = "Invalid filename."
	msgImageNotFound = "Image not found or not associated with any closet item."
	msgFileNotFound  = "File not found"
)

// ImageStore keeps uploaded photos on local disk and renders them as JPEG.
type ImageStore struct {
	dir       string
	maxWidth  int
	quality   int
	maxPixels int
	now       func() time.Time
}

// ImageOption configures an ImageStore.
type ImageOption func(*ImageStore)

// WithImageClock overrides the clock used for file names.
func WithImageClock(now func() time.Time) ImageOption {
	return func(s *ImageStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxWidth overrides the rendered width cap (default 800).
func WithMaxWidth(px int) ImageOption {
	return func(s *ImageStore) {
		if px > 0 {
			s.maxWidth = px
		}
	}
}

// NewImageStore creates dir when missing.
func NewImageStore(dir string, opts ...ImageOption) (*ImageStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("closet: empty image dir")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("closet: create image dir: %w", err)
	}
	s := &ImageStore{
		dir:       dir,
		maxWidth:  800,
		quality:   80,
		maxPixels: 40_000_000,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Save stores src under a fresh name derived from originalName and returns
// that name. Both the declared content type and the sniffed bytes must be
// an image.
func (s *ImageStore) Save(src io.Reader, originalName, contentType string) (string, error) {
	const op = "closet.SaveImage"

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image") {
		return "", invalid(op, msgNotImage)
	}

	br := bufio.NewReaderSize(src, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("%s: read: %w", op, err)
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", invalid(op, msgNotImage)
	}

	base, ext := splitUploadName(originalName)
	ms := s.now().UnixMilli()

	var f *os.File
	var name string
	for attempt := 0; attempt < 5; attempt++ {
		name = fmt.Sprintf("%s-%d%s", base, ms+int64(attempt), ext)
		f, err = os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%s: create: %w", op, err)
		}
	}
	if f == nil {
		return "", fmt.Errorf("%s: no free file name for %q", op, base)
	}

	if _, err := io.Copy(f, br); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("%s: write: %w", op, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("%s: close: %w", op, err)
	}
	return name, nil
}

// Remove deletes a stored photo.
func (s *ImageStore) Remove(name string) error {
	if !ValidImageName(name) {
		return invalid("closet.RemoveImage", msgInvalidName)
	}
	return os.Remove(filepath.Join(s.dir, name))
}

// Render decodes a stored photo, scales it down to the width cap and
// writes it to w as JPEG.
func (s *ImageStore) Render(w io.Writer, name string) error {
	const op = "closet.RenderImage"

	if !ValidImageName(name) {
		return invalid(op, msgInvalidName)
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(op, msgFileNotFound)
		}
		return fmt.Errorf("%s: open: %w", op, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("%s: decode config: %w", op, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > s.maxPixels {
		return fmt.Errorf("%s: refusing %dx%d image", op, cfg.Width, cfg.Height)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%s: seek: %w", op, err)
	}

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}

	return jpeg.Encode(w, s.scale(src), &jpeg.Options{Quality: s.quality})
}

func (s *ImageStore) scale(src image.Image) image.Image {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	if width > s.maxWidth {
		height = max(1, height*s.maxWidth/width)
		width = s.maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// ValidImageName rejects empty names, traversal and anything with a path separator.
func ValidImageName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.Contains(name, "..") || filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return false
	}
	return true
}

// splitUploadName turns "My Coat.JPG" into ("My-Coat", ".jpg").
func splitUploadName(original string) (string, string) {
	original = filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "." || len(ext) > 10 || strings.ContainsFunc(ext[min(1, len(ext)):], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		ext = ""
	}
	base := strings.TrimSuffix(original, filepath.Ext(original))

	var b strings.Builder
	dash := false
	for _, r := range base {
		switch {
		case unicode.IsSpace(r):
			if !dash {
				b.WriteByte('-')
				dash = true
			}
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'):
			b.WriteRune(r)
			dash = r == '-'
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" || out == "." {
		out = "photo"
	}
	if len(out) > 100 {
		out = out[:100]
	}
	return out, ext
}
