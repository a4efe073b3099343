package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownPreset is returned by Preset for names it does not know.
var ErrUnknownPreset = errors.New("unknown preset")

// ISS sample TLE, used by the optional low-orbit satellite preset.
const (
	issTLE1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issTLE2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

// SolarSystem returns the default scene: the sun, eight planets, the Moon,
// a starfield and an Earth-Mars shuttle.
func SolarSystem() SceneDefinition {
	planet := func(id, name string, radius, distance, speed float64, color Color) BodyDefinition {
		return BodyDefinition{
			ID:           id,
			Name:         name,
			Kind:         BodyKindPlanet,
			Radius:       radius,
			OrbitRadius:  distance,
			OrbitalSpeed: speed,
			SpinRate:     0.01,
			Color:        color,
			Label:        name,
		}
	}

	earth := planet("earth", "Earth", 0.6, 8, 0.01, 0x00b7eb)
	earth.Ring = &RingDefinition{Offset: 0.2, TubeRadius: 0.05, Color: 0xffffff}

	return SceneDefinition{
		Name: "solar-system",
		Kind: SceneKindSolar,
		Bodies: []BodyDefinition{
			{
				ID:       "sun",
				Name:     "Sun",
				Kind:     BodyKindStar,
				Radius:   2,
				SpinRate: 0.005,
				Color:    0xffff00,
				Label:    "Sun",
			},
			planet("mercury", "Mercury", 0.3, 4, 0.04, 0xbbbbbb),
			planet("venus", "Venus", 0.5, 6, 0.015, 0xffd700),
			earth,
			{
				ID:           "moon",
				Name:         "Moon",
				Kind:         BodyKindMoon,
				Radius:       0.16,
				OrbitRadius:  1.2,
				OrbitalSpeed: 0.04,
				Color:        0xcccccc,
				Parent:       "earth",
				Label:        "Moon",
			},
			planet("mars", "Mars", 0.4, 10, 0.008, 0xff4500),
			planet("jupiter", "Jupiter", 1.2, 14, 0.004, 0xff8c00),
			planet("saturn", "Saturn", 1.0, 18, 0.003, 0xffe4b5),
			planet("uranus", "Uranus", 0.8, 22, 0.002, 0x00fa9a),
			planet("neptune", "Neptune", 0.8, 26, 0.0015, 0x1e90ff),
		},
		Starfield: &StarfieldDefinition{
			Count:       3000,
			InnerRadius: 90,
			OuterRadius: 100,
			MaxVelocity: 0.005,
			Damping:     0.9,
			Color:       0xffffff,
			PointSize:   0.5,
		},
		Shuttle: &ShuttleDefinition{
			ID:            "starship",
			Label:         "Starship",
			From:          "earth",
			To:            "mars",
			Speed:         0.002,
			ControlHeight: 3,
			LookAhead:     0.001,
			Segments:      100,
			Color:         0x00ff00,
		},
		Camera:        DefaultCamera(),
		Clock:         ClockDefinition{FrameSeconds: 10},
		OrbitSegments: 128,
	}
}

// WithLowOrbitSatellite adds an SGP4-driven satellite around Earth to a
// copy of def. The clock epoch is pinned to the TLE epoch.
func WithLowOrbitSatellite(def SceneDefinition) SceneDefinition {
	bodies := make([]BodyDefinition, len(def.Bodies), len(def.Bodies)+1)
	copy(bodies, def.Bodies)
	def.Bodies = append(bodies, BodyDefinition{
		ID:          "iss",
		Name:        "ISS",
		Kind:        BodyKindMoon,
		Radius:      0.05,
		OrbitRadius: 0.8,
		Color:       0xffffff,
		Parent:      "earth",
		Label:       "ISS",
		TLE:         &TLE{Line1: issTLE1, Line2: issTLE2},
	})
	def.Clock.Epoch = time.Date(2021, 10, 2, 14, 11, 0, 0, time.UTC)
	return def
}

// CubeDemo returns the trivial rotating-cube scene.
func CubeDemo() SceneDefinition {
	return SceneDefinition{
		Name: "cube",
		Kind: SceneKindCube,
		Camera: CameraDefinition{
			FOVDegrees: 75,
			Near:       0.1,
			Far:        1000,
			Position:   Position{Z: 5},
			Width:      1280,
			Height:     720,
		},
	}
}

// DefaultCamera is the solar-system camera: above the ecliptic looking at
// the sun.
func DefaultCamera() CameraDefinition {
	return CameraDefinition{
		FOVDegrees: 75,
		Near:       0.1,
		Far:        1000,
		Position:   Position{X: 0, Y: 20, Z: 30},
		Width:      1280,
		Height:     720,
	}
}

// Preset returns a built-in scene by name: solar (the default when name is
// empty), satellite or cube.
func Preset(name string) (SceneDefinition, error) {
	switch name {
	case "", "solar":
		return SolarSystem(), nil
	case "satellite":
		return WithLowOrbitSatellite(SolarSystem()), nil
	case "cube":
		return CubeDemo(), nil
	default:
		return SceneDefinition{}, fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
}
