package seal

import (
	"image"

	"github.com/disintegration/imaging"
)

// Result is the outcome of a seal/signature search on a page image
type Result struct {
	Present bool
	Crop    image.Image
}

// Detector locates a seal or signature-like blob on an invoice page
type Detector interface {
	Detect(img image.Image) Result
}

// BlobDetector finds seal/signature marks by binarizing the page and looking
// for a connected ink blob whose bounding box falls inside an empirically
// chosen size window. The first qualifying blob in scan order wins; blobs are
// not ranked by size or shape.
type BlobDetector struct {
	// Threshold is the grayscale cutoff: pixels darker than this count as ink
	Threshold uint8
	// Bounding-box window, in pixels, that a blob must fall inside
	MinWidth, MaxWidth   int
	MinHeight, MaxHeight int
}

// NewBlobDetector creates a BlobDetector with the window tuned on scanned
// Indian GST invoices
func NewBlobDetector() *BlobDetector {
	return &BlobDetector{
		Threshold: 150,
		MinWidth:  50,
		MaxWidth:  300,
		MinHeight: 50,
		MaxHeight: 200,
	}
}

// Detect searches img for a seal-sized ink blob and returns its crop when
// found
func (d *BlobDetector) Detect(img image.Image) Result {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return Result{}
	}

	// Binarize: true marks ink pixels
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// NRGBA from Grayscale has R==G==B
			if gray.Pix[gray.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)] < d.Threshold {
				mask[y*w+x] = true
			}
		}
	}

	visited := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !mask[idx] || visited[idx] {
				continue
			}
			box := floodFill(mask, visited, w, h, x, y)
			bw, bh := box.Dx(), box.Dy()
			if d.MinWidth < bw && bw < d.MaxWidth && d.MinHeight < bh && bh < d.MaxHeight {
				crop := imaging.Crop(img, box.Add(bounds.Min))
				return Result{Present: true, Crop: crop}
			}
		}
	}

	return Result{}
}

// floodFill marks the 8-connected component containing (x, y) as visited and
// returns its bounding box
func floodFill(mask, visited []bool, w, h, x, y int) image.Rectangle {
	minX, minY, maxX, maxY := x, y, x, y
	stack := []int{y*w + x}
	visited[y*w+x] = true

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		px, py := idx%w, idx/w

		if px < minX {
			minX = px
		}
		if px > maxX {
			maxX = px
		}
		if py < minY {
			minY = py
		}
		if py > maxY {
			maxY = py
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := px+dx, py+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				nidx := ny*w + nx
				if mask[nidx] && !visited[nidx] {
					visited[nidx] = true
					stack = append(stack, nidx)
				}
			}
		}
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}
