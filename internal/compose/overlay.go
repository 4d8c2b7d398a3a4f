package compose

import (
	"image"

	"github.com/disintegration/imaging"
)

// Placement heuristics for the product on the base scene. The vertical
// anchor is a fixed "neck-level" fraction, not content-aware.
const (
	objectWidthFraction = 0.35
	verticalAnchor      = 0.30
)

// overlayProduct resizes the cut-out to 35% of the base width, preserving
// its own aspect ratio, and composites it horizontally centered with its top
// edge at 30% of the base height. The canvas keeps the base dimensions.
func overlayProduct(base, object image.Image) *image.NRGBA {
	baseW := base.Bounds().Dx()
	baseH := base.Bounds().Dy()

	targetW := int(objectWidthFraction * float64(baseW))
	// Height 0 lets imaging derive it from the object's own ratio; the
	// object is never stretched to fit.
	resized := imaging.Resize(object, targetW, 0, imaging.Lanczos)

	offsetX := (baseW - resized.Bounds().Dx()) / 2
	offsetY := int(verticalAnchor * float64(baseH))

	canvas := imaging.Clone(base)
	return imaging.Overlay(canvas, resized, image.Pt(offsetX, offsetY), 1.0)
}
