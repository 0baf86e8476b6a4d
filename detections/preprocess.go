package detections

import (
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Preprocessor turns a frame into the model input: resized to the model resolution,
// planar RGB (CHW) float32 scaled to [0, 1].
type Preprocessor struct {
	width, height int
	numWorkers    int
	filter        imaging.ResampleFilter
}

func NewPreprocessor(width, height int) *Preprocessor {
	return &Preprocessor{
		width:      width,
		height:     height,
		numWorkers: runtime.GOMAXPROCS(0),
		filter:     imaging.CatmullRom,
	}
}

// TensorSize is the number of float32 values Process writes.
func (p *Preprocessor) TensorSize() int {
	return p.width * p.height * 3
}

func (p *Preprocessor) Process(img image.Image, dst []float32) error {
	if len(dst) < p.TensorSize() {
		return errors.Errorf("input buffer holds %d values, want %d", len(dst), p.TensorSize())
	}
	if img.Bounds().Empty() {
		return errors.New("empty image")
	}

	resized := imaging.Resize(img, p.width, p.height, p.filter)
	p.processParallel(resized, dst)
	return nil
}

func (p *Preprocessor) processParallel(img *image.NRGBA, buffer []float32) {
	channelSize := p.width * p.height
	numWorkers := p.numWorkers
	if numWorkers > p.height {
		numWorkers = p.height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	rowsPerWorker := p.height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		startRow := w * rowsPerWorker
		endRow := (w + 1) * rowsPerWorker
		if w == numWorkers-1 {
			endRow = p.height
		}

		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				src := img.Pix[y*img.Stride : y*img.Stride+p.width*4]
				offset := y * p.width
				for x := 0; x < p.width; x++ {
					i := offset + x
					buffer[i] = float32(src[x*4]) / 255.0
					buffer[channelSize+i] = float32(src[x*4+1]) / 255.0
					buffer[channelSize*2+i] = float32(src[x*4+2]) / 255.0
				}
			}
		}(startRow, endRow)
	}

	wg.Wait()
}
