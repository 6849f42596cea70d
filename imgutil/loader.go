package imgutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeSVG  = "image/svg+xml"
	MimeWebP = "image/webp"

	DefaultJPEGQuality = 85
	// maxEmbedDim limits size of images re-encoded for embedding.
	maxEmbedDim = 2400
)

var ErrNotImage = errors.New("data is not a recognizable image")

// Payload is raw image as it was referenced by manuscript.
type Payload struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Ext returns file name extension for payload type.
func (p *Payload) Ext() string {
	switch p.MIME {
	case MimeJPEG:
		return "jpg"
	case MimeSVG:
		return "svg"
	}
	if ext := filetype.GetType(strings.TrimPrefix(p.MIME, "image/")); ext != filetype.Unknown {
		return ext.Extension
	}
	return strings.TrimPrefix(p.MIME, "image/")
}

// JPEG is image prepared for embedding as DCT stream.
type JPEG struct {
	Data       []byte
	Width      int
	Height     int
	Components int // 1 - gray, 3 - RGB
	Converted  bool
}

// Loader resolves image references and prepares them for output formats.
// Zero value is usable.
type Loader struct {
	BaseDir     string
	JPEGQuality int
}

func (l *Loader) quality() int {
	if l == nil || l.JPEGQuality <= 0 || l.JPEGQuality > 100 {
		return DefaultJPEGQuality
	}
	return l.JPEGQuality
}

func (l *Loader) baseDir() string {
	if l == nil {
		return ""
	}
	return l.BaseDir
}

// Detect sniffs media type of data.
func Detect(data []byte) (string, error) {
	if isSVG(data) {
		return MimeSVG, nil
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(data) {
		return "", ErrNotImage
	}
	return kind.MIME.Value, nil
}

// Load reads payload and its metadata. Anything which cannot be described
// results in error.
func (l *Loader) Load(src string) (*Payload, error) {
	data, declared, err := ReadSource(src, l.baseDir())
	if err != nil {
		return nil, err
	}
	mt, err := Detect(data)
	if err != nil {
		if declared == MimeSVG && bytes.Contains(data, []byte("<svg")) {
			mt = MimeSVG
		} else {
			return nil, err
		}
	}

	p := &Payload{Data: data, MIME: mt}
	if mt == MimeSVG {
		if p.Width, p.Height, err = svgSize(data); err != nil {
			return nil, fmt.Errorf("unable to read svg: %w", err)
		}
		return p, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to read image metadata (%s): %w", mt, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has no size (%s)", mt)
	}
	p.Width, p.Height = cfg.Width, cfg.Height
	return p, nil
}

// decode returns raster version of any supported payload.
func decode(p *Payload) (image.Image, error) {
	if p.MIME == MimeSVG {
		return RasterizeSVG(p.Data, min(p.Width, maxEmbedDim), 0)
	}
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode image (%s): %w", p.MIME, err)
	}
	return img, nil
}

// flatten draws image on opaque white background, limiting its size.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() > maxEmbedDim || b.Dy() > maxEmbedDim {
		img = imaging.Fit(img, maxEmbedDim, maxEmbedDim, imaging.Lanczos)
		b = img.Bounds()
	}
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func (l *Loader) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(l.quality())); err != nil {
		return nil, fmt.Errorf("unable to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToJPEG makes JPEG suitable for DCTDecode stream. RGB and
// grayscale JPEGs are passed as is, everything else is decoded, flattened and
// re-encoded.
func (l *Loader) ToJPEG(p *Payload) (*JPEG, error) {
	if p.MIME == MimeJPEG {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(p.Data))
		if err != nil {
			return nil, fmt.Errorf("unable to read jpeg metadata: %w", err)
		}
		switch cfg.ColorModel {
		case color.GrayModel:
			return &JPEG{Data: p.Data, Width: cfg.Width, Height: cfg.Height, Components: 1}, nil
		case color.YCbCrModel:
			return &JPEG{Data: p.Data, Width: cfg.Width, Height: cfg.Height, Components: 3}, nil
		}
	}

	img, err := decode(p)
	if err != nil {
		return nil, err
	}
	flat := flatten(img)
	data, err := l.encodeJPEG(flat)
	if err != nil {
		return nil, err
	}
	b := flat.Bounds()
	return &JPEG{Data: data, Width: b.Dx(), Height: b.Dy(), Components: 3, Converted: true}, nil
}

// LoadJPEG combines Load and ToJPEG.
func (l *Loader) LoadJPEG(src string) (*JPEG, error) {
	p, err := l.Load(src)
	if err != nil {
		return nil, err
	}
	return l.ToJPEG(p)
}

// ForEbook returns payload in one of the core media types reading systems
// are required to support, converting it to JPEG when necessary.
func (l *Loader) ForEbook(src string) (*Payload, error) {
	p, err := l.Load(src)
	if err != nil {
		return nil, err
	}
	switch p.MIME {
	case MimeJPEG, MimePNG, MimeGIF, MimeSVG, MimeWebP:
		return p, nil
	}
	j, err := l.ToJPEG(p)
	if err != nil {
		return nil, err
	}
	return &Payload{Data: j.Data, MIME: MimeJPEG, Width: j.Width, Height: j.Height}, nil
}
