package avatar

import (
	"image"

	"golang.org/x/image/draw"
)

// Input geometry for ImageNet-trained backbones.
const (
	ResizeTo = 256
	CropSize = 224
)

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocess resizes img so its shorter side is ResizeTo, centre-crops CropSize
// square, and returns a CHW float tensor normalized with ImageNet statistics.
func Preprocess(img image.Image) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return make([]float32, 3*CropSize*CropSize)
	}
	nw, nh := ResizeTo, ResizeTo
	if w < h {
		nh = h * ResizeTo / w
	} else {
		nw = w * ResizeTo / h
	}
	nw, nh = max(nw, CropSize), max(nh, CropSize)

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	x0, y0 := (nw-CropSize)/2, (nh-CropSize)/2
	plane := CropSize * CropSize
	out := make([]float32, 3*plane)
	for y := range CropSize {
		for x := range CropSize {
			px := resized.RGBAAt(x0+x, y0+y)
			i := y*CropSize + x
			out[i] = (float32(px.R)/255 - imagenetMean[0]) / imagenetStd[0]
			out[plane+i] = (float32(px.G)/255 - imagenetMean[1]) / imagenetStd[1]
			out[2*plane+i] = (float32(px.B)/255 - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return out
}

// GlobalAveragePool reduces a CHW feature map to one value per channel.
func GlobalAveragePool(features []float32, channels int) []float64 {
	if channels <= 0 || len(features) < channels {
		return nil
	}
	spatial := len(features) / channels
	out := make([]float64, channels)
	for c := range channels {
		var sum float64
		for _, v := range features[c*spatial : (c+1)*spatial] {
			sum += float64(v)
		}
		out[c] = sum / float64(spatial)
	}
	return out
}
