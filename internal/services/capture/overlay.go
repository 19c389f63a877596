package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/models"
)

var (
	personColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	weaponColor  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	labelBgColor = color.RGBA{R: 0, G: 0, B: 0, A: 200}
	threatColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// DrawDetections draws person and weapon boxes with confidence labels,
// plus the threat level in the top-left corner.
func DrawDetections(mat *gocv.Mat, res *models.DetectionResult) {
	if mat == nil || res == nil {
		return
	}

	for _, p := range res.People {
		drawBox(mat, p.BBox, fmt.Sprintf("Person %.2f", p.Confidence), personColor, 2, 0.5)
	}
	for _, w := range res.Weapons {
		drawBox(mat, w.BBox, fmt.Sprintf("%s %.2f", w.Name, w.Confidence), weaponColor, 3, 0.6)
	}

	drawLabel(mat, fmt.Sprintf("Threat %s", res.ThreatLevel), 10, 25, threatColor, 0.6)
}

func drawBox(mat *gocv.Mat, b models.BBox, label string, c color.RGBA, thickness int, fontScale float64) {
	rect := image.Rect(int(b[0]), int(b[1]), int(b[2]), int(b[3]))
	gocv.Rectangle(mat, rect, c, thickness)
	drawLabel(mat, label, rect.Min.X, rect.Min.Y-10, c, fontScale)
}

func drawLabel(mat *gocv.Mat, text string, x, y int, c color.RGBA, fontScale float64) {
	const thickness = 2
	fontFace := gocv.FontHersheySimplex
	size := gocv.GetTextSize(text, fontFace, fontScale, thickness)

	if y-size.Y < 0 {
		y = size.Y + 2
	}

	bg := image.Rect(x-2, y-size.Y-4, x+size.X+2, y+4)
	gocv.Rectangle(mat, bg, labelBgColor, -1)
	gocv.PutText(mat, text, image.Pt(x, y), fontFace, fontScale, c, thickness)
}
