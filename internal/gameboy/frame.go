package gameboy

import (
	"image"
	"image/draw"
	"image/gif"
	"image/png"
	"io"

	"github.com/andybons/gogif"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Scale upscales a frame by an integer factor. Nearest neighbour keeps the
// pixel art sharp.
func Scale(frame image.Image, scale int) image.Image {
	if scale <= 1 {
		return frame
	}
	b := frame.Bounds()
	return resize.Resize(uint(b.Dx()*scale), uint(b.Dy()*scale), frame, resize.NearestNeighbor)
}

func EncodePNG(w io.Writer, frame image.Image, scale int) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return errors.Wrap(enc.Encode(w, Scale(frame, scale)), "gameboy: encode png")
}

// EncodeGIF writes the frames as a looping animation, delay is in 100ths of a second.
func EncodeGIF(w io.Writer, frames []image.Image, scale, delay int) error {
	if len(frames) == 0 {
		return errors.New("gameboy: no frames to encode")
	}

	out := &gif.GIF{LoopCount: 0}
	q := gogif.MedianCutQuantizer{NumColor: 256}
	for _, f := range frames {
		img := Scale(f, scale)
		rect := img.Bounds()
		pm := image.NewPaletted(rect, nil)
		q.Quantize(pm, rect, img, rect.Min)
		draw.Draw(pm, rect, img, rect.Min, draw.Src)

		out.Image = append(out.Image, pm)
		out.Delay = append(out.Delay, delay)
	}
	return errors.Wrap(gif.EncodeAll(w, out), "gameboy: encode gif")
}
