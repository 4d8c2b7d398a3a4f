package compose

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestParseAspectRatio(t *testing.T) {
	w, h, err := parseAspectRatio("16:9")
	if err != nil || w != 16 || h != 9 {
		t.Fatalf("parseAspectRatio(16:9) = %d:%d, %v", w, h, err)
	}
	w, h, err = parseAspectRatio(" 9 : 16 ")
	if err != nil || w != 9 || h != 16 {
		t.Fatalf("parseAspectRatio(spaced) = %d:%d, %v", w, h, err)
	}
	for _, bad := range []string{"", "16", "16:0", "0:9", "a:b", "-4:3"} {
		if _, _, err := parseAspectRatio(bad); err == nil {
			t.Errorf("parseAspectRatio(%q) succeeded, want error", bad)
		}
	}
}

func TestCropToRatioSquareSource(t *testing.T) {
	src := solidImage(1000, 1000, color.NRGBA{120, 120, 120, 255})
	out := cropToRatio(src, 16, 9)
	if got := out.Bounds().Dx(); got != 1000 {
		t.Fatalf("crop width = %d, want full 1000", got)
	}
	if got := out.Bounds().Dy(); got != 562 {
		t.Fatalf("crop height = %d, want 562", got)
	}
}

func TestCropToRatioAlreadyMatching(t *testing.T) {
	src := solidImage(1600, 900, color.NRGBA{10, 10, 10, 255})
	out := cropToRatio(src, 16, 9)
	if out.Bounds().Dx() != 1600 || out.Bounds().Dy() != 900 {
		t.Fatalf("crop = %dx%d, want unchanged 1600x900", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestCropToRatioFollowsSubject(t *testing.T) {
	// Wide black frame with a white subject near the left edge. A centered
	// square crop would discard it; the attention-weighted crop must keep it.
	src := solidImage(1000, 500, color.NRGBA{0, 0, 0, 255})
	for y := 200; y < 300; y++ {
		for x := 150; x < 250; x++ {
			src.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}

	out := cropToRatio(src, 1, 1)
	if out.Bounds().Dx() != 500 || out.Bounds().Dy() != 500 {
		t.Fatalf("crop = %dx%d, want 500x500", out.Bounds().Dx(), out.Bounds().Dy())
	}

	found := false
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if out.NRGBAAt(x, y).R > 200 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatal("subject was cropped out; window did not follow the attention center")
	}
}

func TestAttentionCenterFlatImage(t *testing.T) {
	src := solidImage(400, 200, color.NRGBA{77, 77, 77, 255})
	x, y := attentionCenter(src)
	if x != 200 || y != 100 {
		t.Fatalf("attentionCenter(flat) = (%d,%d), want geometric center (200,100)", x, y)
	}
}

func TestOverlayProductPlacement(t *testing.T) {
	base := solidImage(1000, 800, color.NRGBA{0, 0, 255, 255})
	object := solidImage(200, 100, color.NRGBA{255, 0, 0, 255})

	out := overlayProduct(base, object)
	if out.Bounds().Dx() != 1000 || out.Bounds().Dy() != 800 {
		t.Fatalf("canvas = %dx%d, want base dimensions 1000x800", out.Bounds().Dx(), out.Bounds().Dy())
	}

	// Object resizes to 35% of base width with its own 2:1 ratio preserved,
	// centered horizontally with its top edge at 30% of base height. So the
	// red region spans x [325,675), y [240,415).
	if px := out.NRGBAAt(500, 300); px.R < 200 || px.B > 50 {
		t.Fatalf("pixel inside overlay = %+v, want red object", px)
	}
	if px := out.NRGBAAt(500, 100); px.B < 200 || px.R > 50 {
		t.Fatalf("pixel above overlay = %+v, want untouched blue base", px)
	}
	if px := out.NRGBAAt(100, 300); px.B < 200 || px.R > 50 {
		t.Fatalf("pixel left of overlay = %+v, want untouched blue base", px)
	}
	if px := out.NRGBAAt(500, 500); px.B < 200 || px.R > 50 {
		t.Fatalf("pixel below overlay = %+v, want untouched blue base", px)
	}
}
