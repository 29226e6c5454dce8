package hex

import "math"

// Vec is a point or direction in world space. Y grows downwards.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

func (v Vec) Scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }

func (v Vec) Dot(o Vec) float64 { return v.X*o.X + v.Y*o.Y }

func (v Vec) LenSq() float64 { return v.X*v.X + v.Y*v.Y }

func (v Vec) Len() float64 { return math.Sqrt(v.LenSq()) }

// Angle returns the angle of v from the +X axis towards +Y, which is
// clockwise on screen. Shield angles use the same convention.
func (v Vec) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// FromAngle returns the unit vector at angle a.
func FromAngle(a float64) Vec {
	return Vec{math.Cos(a), math.Sin(a)}
}

// WrapAngle maps a into (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
