package web

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/fogleman/gg"

	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/turret"
)

var errNoImage = errors.New("no image yet")

// RenderOverlay draws the difference map with the frame centre, the dead zone
// and, when motion was detected, a circle on the centroid joined to the centre.
func RenderOverlay(snap turret.Snapshot, deadzone int) (image.Image, error) {
	dc, err := overlayContext(snap, deadzone)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

func overlayContext(snap turret.Snapshot, deadzone int) (*gg.Context, error) {
	w, h := snap.DiffWidth, snap.DiffHeight
	if w <= 0 || h <= 0 || len(snap.DiffMap) != w*h {
		return nil, errNoImage
	}
	base := &image.Gray{Pix: snap.DiffMap, Stride: w, Rect: image.Rect(0, 0, w, h)}

	dc := gg.NewContext(w, h)
	dc.DrawImage(base, 0, 0)

	cx, cy := float64(w)/2, float64(h)/2
	dc.SetRGBA(0, 1, 0, 0.8)
	dc.SetLineWidth(1)
	dc.DrawLine(cx-10, cy, cx+10, cy)
	dc.DrawLine(cx, cy-10, cx, cy+10)
	dc.Stroke()
	if deadzone > 0 {
		d := float64(deadzone)
		dc.SetRGBA(0, 1, 0, 0.4)
		dc.DrawRectangle(cx-d, cy-d, 2*d, 2*d)
		dc.Stroke()
	}

	obs := snap.Observation
	if obs.Detected {
		x, y := float64(obs.CentroidX), float64(obs.CentroidY)
		r := math.Max(4, math.Sqrt(float64(obs.PixelCount)/math.Pi))
		dc.SetRGB(1, 0.2, 0)
		dc.SetLineWidth(2)
		dc.DrawCircle(x, y, r)
		dc.Stroke()
		dc.DrawLine(cx, cy, x, y)
		dc.Stroke()
	}
	return dc, nil
}

// encodeOverlay renders the overlay as PNG.
func encodeOverlay(snap turret.Snapshot, deadzone int) ([]byte, error) {
	dc, err := overlayContext(snap, deadzone)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// frameJPEG returns the frame as JPEG bytes, encoding raw formats.
func frameJPEG(f *camera.Frame, quality int) ([]byte, error) {
	if f == nil {
		return nil, errNoImage
	}
	if f.Format == camera.JPEG {
		return f.Data, nil
	}
	img, err := rawImage(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rawImage(f *camera.Frame) (image.Image, error) {
	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 {
		return nil, errNoImage
	}
	switch f.Format {
	case camera.Grayscale:
		if len(f.Data) != w*h {
			return nil, errNoImage
		}
		return &image.Gray{Pix: f.Data, Stride: w, Rect: image.Rect(0, 0, w, h)}, nil
	case camera.RGB565:
		if len(f.Data) != 2*w*h {
			return nil, errNoImage
		}
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			p := uint16(f.Data[2*i])<<8 | uint16(f.Data[2*i+1])
			img.Set(i%w, i/w, color.RGBA{
				R: uint8(p>>11) << 3,
				G: uint8(p>>5&0x3F) << 2,
				B: uint8(p&0x1F) << 3,
				A: 0xFF,
			})
		}
		return img, nil
	}
	return nil, errNoImage
}
