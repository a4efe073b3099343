package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Color is a packed 0xRRGGBB value. It satisfies image/color.Color so
// renderers can use it directly.
type Color uint32

// ParseColor accepts "#rrggbb", "#rgb", "0xrrggbb" or a bare decimal.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return 0, fmt.Errorf("parse color %q: %w", s, err)
		}
		return FromColorful(c), nil
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("parse color %q: %w", s, err)
		}
		return Color(v & 0xffffff), nil
	default:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("parse color %q: %w", s, err)
		}
		return Color(v & 0xffffff), nil
	}
}

// FromColorful packs a colorful.Color, clamping out-of-gamut channels.
func FromColorful(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Colorful unpacks c for colour-space arithmetic.
func (c Color) Colorful() colorful.Color {
	return colorful.Color{
		R: float64((c>>16)&0xff) / 255,
		G: float64((c>>8)&0xff) / 255,
		B: float64(c&0xff) / 255,
	}
}

// Hex returns the "#rrggbb" form.
func (c Color) Hex() string {
	return c.Colorful().Hex()
}

// Dim blends c toward black in Lab space; t=0 is unchanged, t=1 is black.
func (c Color) Dim(t float64) Color {
	if t <= 0 {
		return c
	}
	if t >= 1 {
		return 0
	}
	return FromColorful(c.Colorful().BlendLab(colorful.Color{}, t))
}

// RGBA implements image/color.Color with full opacity.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32((c >> 16) & 0xff)
	g = uint32((c >> 8) & 0xff)
	b = uint32(c & 0xff)
	return r | r<<8, g | g<<8, b | b<<8, 0xffff
}

func (c Color) String() string { return c.Hex() }

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var n uint32
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Color(n & 0xffffff)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("color must be a string or number: %w", err)
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Color) MarshalYAML() (interface{}, error) {
	return c.Hex(), nil
}

// UnmarshalYAML accepts the same forms as ParseColor. YAML already resolves
// unquoted 0x literals to integers, so both paths end up here.
func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: color must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return err
		}
		*c = Color(uint32(n) & 0xffffff)
		return nil
	}
	parsed, err := ParseColor(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = parsed
	return nil
}
