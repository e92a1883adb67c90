package detection

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// Luma565 reduces an RGB565 pixel to 8-bit luminance with integer weights
// (77, 150, 29)/256 approximating the BT.601 coefficients.
func Luma565(p uint16) uint8 {
	r := uint32(p>>11&0x1F) << 3
	g := uint32(p>>5&0x3F) << 2
	b := uint32(p&0x1F) << 3
	return uint8((77*r + 150*g + 29*b) >> 8)
}

// Pack565 packs 8-bit channels into an RGB565 pixel.
func Pack565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// decodeJPEG decodes data and checks it against the announced dimensions.
func decodeJPEG(data []byte, w, h int) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("%w: decoded %dx%d, frame says %dx%d", ErrBadFrame, b.Dx(), b.Dy(), w, h)
	}
	return img, nil
}

// toRGB565 writes img into dst, row-major, one pixel per element.
func toRGB565(img image.Image, dst []uint16) {
	b := img.Bounds()
	i := 0
	switch m := img.(type) {
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi := m.YOffset(x, y)
				ci := m.COffset(x, y)
				r, g, bl := color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
				dst[i] = Pack565(r, g, bl)
				i++
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := m.Pix[(y-b.Min.Y)*m.Stride:]
			for x := 0; x < b.Dx(); x++ {
				v := row[x]
				dst[i] = Pack565(v, v, v)
				i++
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				dst[i] = Pack565(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
				i++
			}
		}
	}
}

// lumaFrom565 fills dst with the luminance of each RGB565 pixel.
func lumaFrom565(src []uint16, dst []byte) {
	for i, p := range src {
		dst[i] = Luma565(p)
	}
}

// lumaFromRaw565 fills dst from big-endian RGB565 bytes.
func lumaFromRaw565(src []byte, dst []byte) {
	for i := range dst {
		dst[i] = Luma565(uint16(src[2*i])<<8 | uint16(src[2*i+1]))
	}
}
