// Package shot computes ghost-ball aiming geometry and searches for the
// easiest pocketing shot on a table.
package shot

import (
	"math"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/geometry"
)

// epsilon stands in for the length of a zero target->pocket vector.
const epsilon = 1e-6

// Unplayable is the cut angle assigned to degenerate geometry.
const Unplayable = 180.0

// overlapFactor scales the summed radii below which a target is considered
// to overlap the cue ball.
const overlapFactor = 0.6

// Line is a diagnostic segment drawn on the table image.
type Line struct {
	Start geometry.Point `json:"start"`
	End   geometry.Point `json:"end"`
}

// GhostBall is where the cue ball's center must be at contact.
type GhostBall struct {
	Center geometry.Point `json:"center"`
	Radius int            `json:"radius"`
}

// BestShot is the winning (target, pocket) pair of a search.
type BestShot struct {
	TargetBall billiard.Ball  `json:"target_ball"`
	Pocket     geometry.Point `json:"pocket"`
	Angle      float64        `json:"angle"`
	ShotLines  [2]Line        `json:"shot_lines"`
	GhostBall  GhostBall      `json:"ghost_ball"`
}

// GhostPoint returns the ghost ball center: one diameter behind target on the
// pocket->target line. Coincident target and pocket leave it on the target.
func GhostPoint(target, pocket geometry.PointF, radius float64) geometry.PointF {
	dx, dy := target.X-pocket.X, target.Y-pocket.Y

	norm := math.Hypot(dx, dy)
	if norm == 0 {
		norm = epsilon
	}

	return geometry.PointF{
		X: target.X + dx/norm*2*radius,
		Y: target.Y + dy/norm*2*radius,
	}
}

// ComputeGhostBall returns the potting line (target->pocket), the aim line
// (cue->ghost) and the ghost ball for a target of the given radius.
func ComputeGhostBall(cue, target, pocket geometry.Point, radius int) ([2]Line, GhostBall) {
	ghost := GhostPoint(target.Float(), pocket.Float(), float64(radius)).Int()

	lines := [2]Line{
		{Start: target, End: pocket},
		{Start: cue, End: ghost},
	}

	return lines, GhostBall{Center: ghost, Radius: radius}
}

// CutAngle returns the angle in degrees between the cue->ghost and
// ghost->pocket vectors. 0 is a straight-in shot; zero-length vectors are
// Unplayable.
func CutAngle(cue, ghost, pocket geometry.PointF) float64 {
	sx, sy := ghost.X-cue.X, ghost.Y-cue.Y
	px, py := pocket.X-ghost.X, pocket.Y-ghost.Y

	shotLen := math.Hypot(sx, sy)
	potLen := math.Hypot(px, py)
	if shotLen == 0 || potLen == 0 {
		return Unplayable
	}

	cos := (sx*px + sy*py) / (shotLen * potLen)
	cos = math.Max(-1, math.Min(1, cos))

	return math.Acos(cos) * 180 / math.Pi
}

// FindBestShot evaluates every (target, pocket) pair and returns the one with
// the smallest cut angle, or nil when nothing is playable. Targets outside
// area or overlapping the cue ball are skipped. Ties keep the first pair
// seen. Unplayable pairs are never selected.
func FindBestShot(cue *billiard.Ball, others []billiard.Ball, pockets []geometry.Point, area []geometry.Point) *BestShot {
	if cue == nil || len(others) == 0 || len(pockets) == 0 {
		return nil
	}

	cuePos := cue.Center().Float()
	cueRadius := float64(cue.Radius())

	var best *BestShot
	minAngle := Unplayable

	for _, target := range others {
		if len(area) > 0 && !geometry.PointInPolygon(target.Center(), area, 0) {
			continue
		}

		targetPos := target.Center().Float()
		radius := target.Radius()
		if cuePos.Distance(targetPos) < (cueRadius+float64(radius))*overlapFactor {
			continue
		}

		for _, pocket := range pockets {
			if pocket == target.Center() {
				continue
			}

			ghost := GhostPoint(targetPos, pocket.Float(), float64(radius))
			angle := CutAngle(cuePos, ghost, pocket.Float())
			if angle < minAngle {
				minAngle = angle

				t := target
				t.R = radius
				lines, ghostBall := ComputeGhostBall(cue.Center(), target.Center(), pocket, radius)
				best = &BestShot{
					TargetBall: t,
					Pocket:     pocket,
					Angle:      angle,
					ShotLines:  lines,
					GhostBall:  ghostBall,
				}
			}
		}
	}

	return best
}

// ManualShot is the result of aiming from three hand-placed points.
type ManualShot struct {
	ShotLines [2]Line   `json:"shot_lines"`
	GhostBall GhostBall `json:"ghost_ball"`
	Angle     float64   `json:"angle"`
}

// Manual computes shot lines for a cue, target and pocket picked by hand,
// assuming DefaultRadius balls.
func Manual(cue, target, pocket geometry.Point) ManualShot {
	lines, ghost := ComputeGhostBall(cue, target, pocket, billiard.DefaultRadius)
	angle := CutAngle(cue.Float(), GhostPoint(target.Float(), pocket.Float(), billiard.DefaultRadius), pocket.Float())

	return ManualShot{ShotLines: lines, GhostBall: ghost, Angle: angle}
}
