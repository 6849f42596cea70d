package imgutil

// Box is a placed rectangle, X is offset from the left edge of the area.
type Box struct {
	X, W, H float64
}

// Fit scales w x h into maxW x maxH keeping aspect ratio. Images are never
// upscaled. Result is centered horizontally inside maxW.
func Fit(w, h, maxW, maxH float64) Box {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return Box{}
	}
	scale := min(1, maxW/w, maxH/h)
	b := Box{W: w * scale, H: h * scale}
	b.X = (maxW - b.W) / 2
	return b
}
