package compose

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// parseAspectRatio splits "16:9" into its integer terms.
func parseAspectRatio(ratio string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(ratio), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("compose: invalid aspect ratio %q", ratio)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("compose: invalid aspect ratio %q", ratio)
	}
	return w, h, nil
}

// cropToRatio extracts the maximal sub-rectangle of img matching the w:h
// ratio. The window is placed around the saliency-weighted center instead of
// the geometric one, so the subject survives aggressive crops.
func cropToRatio(img image.Image, ratioW, ratioH int) *image.NRGBA {
	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()
	target := float64(ratioW) / float64(ratioH)

	cropW, cropH := srcW, srcH
	if float64(srcW)/float64(srcH) > target {
		cropW = int(float64(srcH) * target)
	} else {
		cropH = int(float64(srcW) / target)
	}

	centerX, centerY := attentionCenter(img)
	x0 := clamp(centerX-cropW/2, 0, srcW-cropW)
	y0 := clamp(centerY-cropH/2, 0, srcH-cropH)

	rect := image.Rect(x0, y0, x0+cropW, y0+cropH).Add(img.Bounds().Min)
	return imaging.Crop(img, rect)
}

// attentionCenter estimates where the visual interest sits: the centroid of
// gradient-magnitude energy over a downsampled grayscale copy. Flat images
// degrade to the geometric center.
func attentionCenter(img image.Image) (int, int) {
	const probeWidth = 256

	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()
	probe := img
	scale := 1.0
	if srcW > probeWidth {
		probe = imaging.Resize(img, probeWidth, 0, imaging.Box)
		scale = float64(srcW) / float64(probeWidth)
	}
	gray := imaging.Grayscale(probe)

	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()
	var totalEnergy, sumX, sumY float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := luminance(gray, x+1, y) - luminance(gray, x-1, y)
			gy := luminance(gray, x, y+1) - luminance(gray, x, y-1)
			energy := gx*gx + gy*gy
			totalEnergy += energy
			sumX += energy * float64(x)
			sumY += energy * float64(y)
		}
	}
	if totalEnergy == 0 {
		return srcW / 2, srcH / 2
	}
	return int(sumX / totalEnergy * scale), int(sumY / totalEnergy * scale)
}

func luminance(gray *image.NRGBA, x, y int) float64 {
	return float64(gray.NRGBAAt(x, y).R)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
