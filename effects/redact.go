package effects

import (
	"image"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	transform "github.com/filestack/transformations-ui-ios-sub001"
	"github.com/filestack/transformations-ui-ios-sub001/utils"
)

// Redaction methods.
const (
	RedactPixelate = "pixelate"
	RedactBlur     = "blur"
)

// detectionQuality is the minimum pigo score for a face to be redacted.
const detectionQuality = 5.0

// RedactParams hide detected faces. MaxSize 0 means the larger image side.
type RedactParams struct {
	Method   string
	Strength int
	MinSize  int
	MaxSize  int
	Angle    float64
}

func defaultRedact() transform.Params {
	return RedactParams{Method: RedactPixelate, Strength: 12, MinSize: 20}
}

// Set implements transform.Params.
func (p RedactParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "method":
		p.Method, err = oneOf(name, v, RedactPixelate, RedactBlur)
	case "strength":
		p.Strength, err = intIn(name, v, 1, 256)
	case "min_size":
		p.MinSize, err = intAtLeast(name, v, 1)
	case "max_size":
		p.MaxSize, err = intAtLeast(name, v, 0)
	case "angle":
		p.Angle, err = floatIn(name, v, 0, 1)
	default:
		return nil, transform.UnknownParam(KindRedact, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p RedactParams) Values() transform.Values {
	return transform.Values{
		"method":   p.Method,
		"strength": p.Strength,
		"min_size": p.MinSize,
		"max_size": p.MaxSize,
		"angle":    p.Angle,
	}
}

func redactKernel(detector *pigo.Pigo) transform.Kernel {
	return kernel(KindRedact, defaultRedact, func(src *transform.Buffer, p RedactParams) (*transform.Buffer, error) {
		faces := detectFaces(detector, src, p)
		if len(faces) == 0 {
			return src, nil
		}
		dst := src.Clone()
		for _, r := range faces {
			dst = redactRegion(dst, r, p)
		}
		return transform.Wrap(dst), nil
	})
}

// detectFaces runs the cascade over src and returns the face rectangles
// clipped to the image.
func detectFaces(detector *pigo.Pigo, src *transform.Buffer, p RedactParams) []image.Rectangle {
	dx, dy := src.Width(), src.Height()
	if dx == 0 || dy == 0 {
		return nil
	}
	maxSize := p.MaxSize
	if maxSize == 0 {
		maxSize = utils.Max(dx, dy)
	}
	img := src.Clone()

	cParams := pigo.CascadeParams{
		MinSize:     p.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,

		ImageParams: pigo.ImageParams{
			Pixels: grayPixels(img),
			Rows:   dy,
			Cols:   dx,
			Dim:    dx,
		},
	}

	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := detector.RunCascade(cParams, p.Angle)
	// Calculate the intersection over union (IoU) of two clusters.
	dets = detector.ClusterDetections(dets, 0.2)

	bounds := img.Bounds()
	var faces []image.Rectangle
	for _, d := range dets {
		if d.Q <= detectionQuality {
			continue
		}
		r := image.Rect(
			d.Col-d.Scale/2,
			d.Row-d.Scale/2,
			d.Col+d.Scale/2,
			d.Row+d.Scale/2,
		).Intersect(bounds)
		if !r.Empty() {
			faces = append(faces, r)
		}
	}
	return faces
}

func redactRegion(dst *image.NRGBA, r image.Rectangle, p RedactParams) *image.NRGBA {
	region := imaging.Crop(dst, r)
	switch p.Method {
	case RedactBlur:
		region = imaging.Blur(region, float64(p.Strength))
	default:
		region = pixelate(region, p.Strength)
	}
	return imaging.Paste(dst, region, r.Min)
}

// pixelate averages img over blocks of size by size pixels.
func pixelate(img *image.NRGBA, size int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	small := imaging.Resize(img, utils.Max(1, w/size), utils.Max(1, h/size), imaging.Box)
	return imaging.Resize(small, w, h, imaging.NearestNeighbor)
}
