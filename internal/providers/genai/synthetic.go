package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math/rand"
	"strconv"
	"strings"
)

const syntheticDownscale = 2

type direction int

const (
	toRight direction = iota
	toTop
	diagonal
)

type gradient struct {
	CSS   string
	Mood  string
	Dir   direction
	Stops []color.RGBA
}

func rgb(hex uint32) color.RGBA {
	return color.RGBA{R: uint8(hex >> 16), G: uint8(hex >> 8), B: uint8(hex), A: 255}
}

var palette = []gradient{
	{CSS: "linear-gradient(to right, #ffecd2 0%, #fcb69f 100%)", Mood: "warm peach", Dir: toRight, Stops: []color.RGBA{rgb(0xffecd2), rgb(0xfcb69f)}},
	{CSS: "linear-gradient(120deg, #a1c4fd 0%, #c2e9fb 100%)", Mood: "airy sky blue", Dir: diagonal, Stops: []color.RGBA{rgb(0xa1c4fd), rgb(0xc2e9fb)}},
	{CSS: "linear-gradient(to top, #cfd9df 0%, #e2ebf0 100%)", Mood: "soft concrete grey", Dir: toTop, Stops: []color.RGBA{rgb(0xcfd9df), rgb(0xe2ebf0)}},
	{CSS: "linear-gradient(120deg, #d4fc79 0%, #96e6a1 100%)", Mood: "fresh lime green", Dir: diagonal, Stops: []color.RGBA{rgb(0xd4fc79), rgb(0x96e6a1)}},
	{CSS: "linear-gradient(to right, #4facfe 0%, #00f2fe 100%)", Mood: "bright ocean cyan", Dir: toRight, Stops: []color.RGBA{rgb(0x4facfe), rgb(0x00f2fe)}},
	{CSS: "radial-gradient(circle at 10% 20%, rgb(255, 197, 61) 0%, rgb(255, 94, 7) 90%)", Mood: "sunset orange glow", Dir: diagonal, Stops: []color.RGBA{rgb(0xffc53d), rgb(0xff5e07)}},
	{CSS: "linear-gradient(to top, #30cfd0 0%, #330867 100%)", Mood: "deep teal to violet night", Dir: toTop, Stops: []color.RGBA{rgb(0x30cfd0), rgb(0x330867)}},
	{CSS: "linear-gradient(to right, #eea2a2 0%, #bbc1bf 19%, #57c6e1 42%, #b49fda 79%, #7ac5d8 100%)", Mood: "pastel prism", Dir: toRight, Stops: []color.RGBA{rgb(0xeea2a2), rgb(0xbbc1bf), rgb(0x57c6e1), rgb(0xb49fda), rgb(0x7ac5d8)}},
}

// shuffledPalette returns a seed-dependent permutation of palette indexes.
func shuffledPalette(seed string) []int {
	sum := sha256.Sum256([]byte(seed))
	r := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))
	return r.Perm(len(palette))
}

func renderGradient(width, height int, g gradient) ([]byte, error) {
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, g.at(position(g.Dir, x, y, width, height)))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func position(dir direction, x, y, width, height int) float64 {
	switch dir {
	case toTop:
		return float64(height-1-y) / float64(max(1, height-1))
	case diagonal:
		return float64(x+y) / float64(max(1, width+height-2))
	default:
		return float64(x) / float64(max(1, width-1))
	}
}

// at interpolates evenly spaced stops at t in [0,1].
func (g gradient) at(t float64) color.RGBA {
	if len(g.Stops) == 1 {
		return g.Stops[0]
	}
	segments := float64(len(g.Stops) - 1)
	idx := int(t * segments)
	if idx >= len(g.Stops)-1 {
		return g.Stops[len(g.Stops)-1]
	}
	local := t*segments - float64(idx)
	a, b := g.Stops[idx], g.Stops[idx+1]
	mix := func(p, q uint8) uint8 { return uint8(float64(p) + (float64(q)-float64(p))*local + 0.5) }
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func normalizeAspect(aspect string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(aspect)) {
	case "16:9":
		return 1920, 1080
	case "9:16":
		return 1080, 1920
	case "4:5", "":
		return 1024, 1280
	case "3:2":
		return 1536, 1024
	case "1:1", "square":
		return 1024, 1024
	default:
		parts := strings.Split(aspect, ":")
		if len(parts) == 2 {
			if a, errA := strconv.Atoi(strings.TrimSpace(parts[0])); errA == nil {
				if b, errB := strconv.Atoi(strings.TrimSpace(parts[1])); errB == nil && a > 0 && b > 0 {
					width := 1024
					height := int(float64(width) * float64(b) / float64(a))
					return width, height
				}
			}
		}
		return 1024, 1280
	}
}
