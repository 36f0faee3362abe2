package render

import (
	"math"
	"strings"
)

// Easing maps linear progress in [0, 1] to eased progress.
type Easing func(t float64) float64

func Linear(t float64) float64 { return t }

func EaseInExpo(t float64) float64 {
	if t <= 0 {
		return 0
	}
	return math.Pow(2, 10*t-10)
}

func EaseOutExpo(t float64) float64 {
	if t >= 1 {
		return 1
	}
	return 1 - math.Pow(2, -10*t)
}

func EaseInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// EasingByName resolves the names accepted in configuration.
func EasingByName(name string) (Easing, bool) {
	switch strings.ToLower(name) {
	case "linear":
		return Linear, true
	case "easein", "easeinexpo":
		return EaseInExpo, true
	case "easeout", "easeoutexpo":
		return EaseOutExpo, true
	case "easeinout", "easeinoutquad":
		return EaseInOutQuad, true
	}
	return nil, false
}
