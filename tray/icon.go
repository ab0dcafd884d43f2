package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

const iconSize = 22

// Tray icons, one filled circle per status.
var (
	iconData            = renderIcon(color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff})
	iconDataConnected   = renderIcon(color.RGBA{R: 0x2e, G: 0xb8, B: 0x5c, A: 0xff})
	iconDataUnavailable = renderIcon(color.RGBA{R: 0xd9, G: 0x3f, B: 0x3f, A: 0xff})
)

func iconFor(s Status) []byte {
	switch s {
	case StatusAvailable:
		return iconDataConnected
	case StatusUnavailable:
		return iconDataUnavailable
	default:
		return iconData
	}
}

func renderIcon(fill color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	center := float64(iconSize-1) / 2
	radius := float64(iconSize)/2 - 1

	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			if dx*dx+dy*dy <= radius*radius {
				img.SetRGBA(x, y, fill)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
