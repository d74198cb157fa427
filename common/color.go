package common

import "github.com/chewxy/math32"

// Color32 is an 8-bit-per-channel RGBA color.
type Color32 [4]uint8

// ColorSpace identifies how color values in a file are encoded.
type ColorSpace int

const (
	// ColorSpaceUnknown means the producer did not tell us.
	ColorSpaceUnknown ColorSpace = iota
	// ColorSpaceSRGB is gamma-encoded sRGB.
	ColorSpaceSRGB
	// ColorSpaceLinear is linear-light RGB.
	ColorSpaceLinear
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceSRGB:
		return "srgb"
	case ColorSpaceLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// ToFloat converts an 8-bit color to normalized floats.
func (c Color32) ToFloat() [4]float32 {
	return [4]float32{
		float32(c[0]) / 255,
		float32(c[1]) / 255,
		float32(c[2]) / 255,
		float32(c[3]) / 255,
	}
}

// Color32FromFloat converts normalized floats to 8-bit, clamping to [0, 1].
func Color32FromFloat(f [4]float32) Color32 {
	var c Color32
	for i := range f {
		v := math32.Max(0, math32.Min(1, f[i]))
		c[i] = uint8(math32.Round(v * 255))
	}
	return c
}

// SRGBToLinear decodes one gamma-encoded channel to linear light.
func SRGBToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}

// LinearToSRGB encodes one linear channel with the sRGB transfer curve.
func LinearToSRGB(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math32.Pow(v, 1/2.4) - 0.055
}

// ConvertColor recodes the RGB channels of c from one color space to another.
// Alpha is always linear and is left alone. Unknown spaces are passed through.
//
// Parameters:
//   - c: the RGBA color to convert
//   - from: the space c is currently encoded in
//   - to: the desired space
//
// Returns:
//   - [4]float32: the recoded color
func ConvertColor(c [4]float32, from, to ColorSpace) [4]float32 {
	if from == to || from == ColorSpaceUnknown || to == ColorSpaceUnknown {
		return c
	}
	conv := LinearToSRGB
	if from == ColorSpaceSRGB {
		conv = SRGBToLinear
	}
	return [4]float32{conv(c[0]), conv(c[1]), conv(c[2]), c[3]}
}
