// Package billiard defines the ball model exchanged between the detectors,
// the shot engine and the HTTP layer.
package billiard

import (
	"strings"

	"github.com/cuesight/cuesight-app/geometry"
)

// DefaultRadius is used whenever a ball arrives without a usable radius.
const DefaultRadius = 18

// IgnoreClass marks balls a user excluded from shot computation.
const IgnoreClass = "ignore"

// Ball is a detected or caller supplied disc in source image pixels.
type Ball struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	R          int     `json:"r"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

func (b Ball) Center() geometry.Point {
	return geometry.Point{X: b.X, Y: b.Y}
}

// Radius returns R, or DefaultRadius when R is not positive.
func (b Ball) Radius() int {
	if b.R <= 0 {
		return DefaultRadius
	}
	return b.R
}

// Ignored reports whether the ball was marked to be skipped.
func (b Ball) Ignored() bool {
	return strings.EqualFold(strings.TrimSpace(b.Class), IgnoreClass)
}

// Label capitalizes a lowercase color label ("white" -> "White").
func Label(color string) string {
	if color == "" {
		return "Unknown"
	}
	return strings.ToUpper(color[:1]) + strings.ToLower(color[1:])
}

// ColorMatcher decides whether a class label denotes a given ball color.
// A class always matches its own color name case-insensitively, which is all
// the classical detector needs. Aliases maps lowercase colors to the extra
// labels a model uses for them, e.g. "yellow" -> {"N1", "N9"}.
type ColorMatcher struct {
	Aliases map[string][]string
}

// Matches reports whether class names color.
func (m ColorMatcher) Matches(class, color string) bool {
	color = strings.ToLower(strings.TrimSpace(color))
	class = strings.TrimSpace(class)

	if strings.EqualFold(class, color) {
		return true
	}

	for _, l := range m.Aliases[color] {
		if strings.EqualFold(l, class) {
			return true
		}
	}
	return false
}

// Partition picks the first ball matching cueColor as the cue ball. Every
// other ball, including further balls of the cue color, is returned in
// others. Ignored balls are dropped and missing radii are defaulted.
func Partition(balls []Ball, cueColor string, m ColorMatcher) (*Ball, []Ball) {
	var cue *Ball
	others := make([]Ball, 0, len(balls))

	for _, b := range balls {
		if b.Ignored() {
			continue
		}
		b.R = b.Radius()

		if cue == nil && m.Matches(b.Class, cueColor) {
			picked := b
			cue = &picked
			continue
		}
		others = append(others, b)
	}

	return cue, others
}
