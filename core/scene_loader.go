package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/orrery/model"
)

var (
	ErrInvalidScene = errors.New("invalid scene")
	ErrUnknownBody  = errors.New("unknown body")
	ErrParentCycle  = errors.New("parent cycle")
)

// Format is a scene file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the encoding from a file extension. Anything that
// is not .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadScene decodes a scene definition, fills defaults and validates it.
// Unknown JSON fields are rejected so typos in hand-written scenes surface.
func LoadScene(r io.Reader, format Format) (*model.SceneDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("LoadScene: read failed: %w", err)
	}

	var def model.SceneDefinition
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("LoadScene: decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("LoadScene: decode json: %w", err)
		}
	}

	ApplyDefaults(&def)
	if err := ValidateScene(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadSceneFile opens path and loads it with the encoding implied by its
// extension.
func LoadSceneFile(path string) (*model.SceneDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene %q: %w", path, err)
	}
	defer f.Close()
	return LoadScene(f, FormatFromPath(path))
}

// ApplyDefaults fills zero-valued optional fields in place.
func ApplyDefaults(def *model.SceneDefinition) {
	if def.Kind == "" {
		def.Kind = model.SceneKindSolar
	}
	if def.OrbitSegments <= 0 {
		def.OrbitSegments = 128
	}
	if def.Clock.FrameSeconds <= 0 {
		def.Clock.FrameSeconds = 10
	}

	cam := &def.Camera
	if cam.FOVDegrees <= 0 {
		cam.FOVDegrees = 75
	}
	if cam.Near <= 0 {
		cam.Near = 0.1
	}
	if cam.Far <= cam.Near {
		cam.Far = 1000
	}
	if cam.Width <= 0 || cam.Height <= 0 {
		cam.Width, cam.Height = 1280, 720
	}

	for i := range def.Bodies {
		b := &def.Bodies[i]
		if b.Kind == "" {
			if b.Parent != "" {
				b.Kind = model.BodyKindMoon
			} else {
				b.Kind = model.BodyKindPlanet
			}
		}
		if b.Label != "" && b.LabelOffset == 0 {
			b.LabelOffset = b.Radius + labelGap(b.Kind)
		}
	}

	if sf := def.Starfield; sf != nil {
		if sf.Damping == 0 {
			sf.Damping = DefaultDamping
		}
		if sf.PointSize <= 0 {
			sf.PointSize = 0.5
		}
	}

	if sh := def.Shuttle; sh != nil {
		if sh.ID == "" {
			sh.ID = "shuttle"
		}
		if sh.Segments <= 0 {
			sh.Segments = 100
		}
		if sh.LookAhead <= 0 {
			sh.LookAhead = 0.001
		}
		if sh.ControlHeight == 0 {
			sh.ControlHeight = 3
		}
	}
}

func labelGap(kind model.BodyKind) float64 {
	switch kind {
	case model.BodyKindStar:
		return 1.5
	case model.BodyKindMoon:
		return 0.3
	default:
		return 0.5
	}
}

// ValidateScene checks structural invariants. Numeric configuration is not
// second-guessed beyond what would break the motion rules.
func ValidateScene(def *model.SceneDefinition) error {
	switch def.Kind {
	case model.SceneKindSolar, model.SceneKindCube:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidScene, def.Kind)
	}

	seen := make(map[string]bool, len(def.Bodies))
	for i := range def.Bodies {
		b := &def.Bodies[i]
		if b.ID == "" {
			return fmt.Errorf("%w: body %d has empty id", ErrInvalidScene, i)
		}
		if seen[b.ID] {
			return fmt.Errorf("%w: duplicate body id %q", ErrInvalidScene, b.ID)
		}
		seen[b.ID] = true
		if b.Radius < 0 || b.OrbitRadius < 0 {
			return fmt.Errorf("%w: body %q has negative radius", ErrInvalidScene, b.ID)
		}
		if b.TLE != nil && b.MotionSource() != model.MotionSourceSpacetrack {
			return fmt.Errorf("%w: body %q has an incomplete TLE", ErrInvalidScene, b.ID)
		}
	}
	if _, err := ParentFirstOrder(def.Bodies); err != nil {
		return err
	}

	if sf := def.Starfield; sf != nil {
		// star buffers are float32; anything wider overflows to Inf
		switch {
		case sf.Count < 0:
			return fmt.Errorf("%w: negative star count", ErrInvalidScene)
		case !float32Range(sf.InnerRadius, sf.OuterRadius):
			return fmt.Errorf("%w: star shell [%g, %g] is not finite", ErrInvalidScene, sf.InnerRadius, sf.OuterRadius)
		case sf.InnerRadius < 0 || sf.OuterRadius <= 0 || sf.InnerRadius > sf.OuterRadius:
			return fmt.Errorf("%w: star shell [%g, %g]", ErrInvalidScene, sf.InnerRadius, sf.OuterRadius)
		case !(sf.Damping > 0 && sf.Damping < 1):
			return fmt.Errorf("%w: star damping %g not in (0, 1)", ErrInvalidScene, sf.Damping)
		case !float32Range(sf.MaxVelocity):
			return fmt.Errorf("%w: star velocity %g is not finite", ErrInvalidScene, sf.MaxVelocity)
		case sf.MaxVelocity < 0:
			return fmt.Errorf("%w: negative star velocity", ErrInvalidScene)
		}
	}

	if sh := def.Shuttle; sh != nil {
		if !seen[sh.From] {
			return fmt.Errorf("%w: shuttle from %q: %w", ErrInvalidScene, sh.From, ErrUnknownBody)
		}
		if !seen[sh.To] {
			return fmt.Errorf("%w: shuttle to %q: %w", ErrInvalidScene, sh.To, ErrUnknownBody)
		}
		if sh.From == sh.To {
			return fmt.Errorf("%w: shuttle endpoints are the same body", ErrInvalidScene)
		}
		if sh.Speed < 0 {
			return fmt.Errorf("%w: negative shuttle speed", ErrInvalidScene)
		}
		if seen[sh.ID] {
			return fmt.Errorf("%w: shuttle id %q collides with a body", ErrInvalidScene, sh.ID)
		}
	}
	return nil
}

// float32Range reports whether every value is finite and representable as a
// finite float32.
func float32Range(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.Abs(v) > math.MaxFloat32 {
			return false
		}
	}
	return true
}

// ParentFirstOrder returns body indices ordered so every parent precedes its
// satellites; declaration order is kept otherwise.
func ParentFirstOrder(bodies []model.BodyDefinition) ([]int, error) {
	index := make(map[string]int, len(bodies))
	for i := range bodies {
		index[bodies[i].ID] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(bodies))
	order := make([]int, 0, len(bodies))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: through body %q", ErrParentCycle, bodies[i].ID)
		}
		state[i] = visiting
		if p := bodies[i].Parent; p != "" {
			pi, ok := index[p]
			if !ok {
				return fmt.Errorf("body %q parent %q: %w", bodies[i].ID, p, ErrUnknownBody)
			}
			if err := visit(pi); err != nil {
				return err
			}
		}
		state[i] = done
		order = append(order, i)
		return nil
	}

	for i := range bodies {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}
