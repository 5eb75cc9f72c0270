package sim

import "math"

// Angle is an angle in radians, normalized into (-Pi, Pi].
type Angle float64

// AngleFromDegrees creates Angle from degrees.
func AngleFromDegrees(d float64) Angle {
	return Angle(normalizeRadians(d * math.Pi / 180.0))
}

// AngleFromRadians creates Angle from radians.
func AngleFromRadians(r float64) Angle {
	return Angle(normalizeRadians(r))
}

// AddRadians adds radians to current angle.
func (a Angle) AddRadians(r float64) Angle {
	return Angle(normalizeRadians(float64(a) + r))
}

// Radians gets angle in radians.
func (a Angle) Radians() float64 {
	return float64(a)
}

// Degrees gets angle in degrees.
func (a Angle) Degrees() float64 {
	return float64(a) * 180 / math.Pi
}

// Rotate rotates the vector (x, y) by the angle.
func (a Angle) Rotate(x, y float64) (float64, float64) {
	c, s := math.Cos(float64(a)), math.Sin(float64(a))
	return x*c - y*s, x*s + y*c
}

func normalizeRadians(r float64) float64 {
	if r >= 2*math.Pi || r <= -2*math.Pi {
		r = math.Remainder(r, 2*math.Pi)
	}
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}
