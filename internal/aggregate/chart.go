package aggregate

import (
	"strconv"
	"strings"

	"fanliga/internal/core"
)

// Box is the drawing rectangle of a trend chart. Inset is the margin kept
// free on every side.
type Box struct {
	Width  float64
	Height float64
	Inset  float64
}

// Point is one plotted sample.
type Point struct {
	X        float64
	Y        float64
	Matchday int
	Rank     int
}

// Tick labels a rank on the vertical axis.
type Tick struct {
	Rank int
	Y    float64
}

type trendScale struct {
	box              Box
	minMD, spanMD    float64
	topRank, lowRank int
	spanRank         float64
}

func newTrendScale(samples []core.PositionSample, box Box) trendScale {
	minMD, maxMD := samples[0].Matchday, samples[0].Matchday
	minRank, maxRank := samples[0].Rank, samples[0].Rank
	for _, s := range samples[1:] {
		minMD = min(minMD, s.Matchday)
		maxMD = max(maxMD, s.Matchday)
		minRank = min(minRank, s.Rank)
		maxRank = max(maxRank, s.Rank)
	}

	// Rank 1 sits on the top inset. When every sample shares one rank the
	// axis is degenerate and that rank takes the top instead.
	top := 1
	if minRank == maxRank {
		top = minRank
	}

	sc := trendScale{
		box:      box,
		minMD:    float64(minMD),
		spanMD:   float64(maxMD - minMD),
		topRank:  top,
		lowRank:  maxRank,
		spanRank: float64(maxRank - top),
	}
	if sc.spanMD <= 0 {
		sc.spanMD = 1
	}
	if sc.spanRank <= 0 {
		sc.spanRank = 1
	}
	return sc
}

func (sc trendScale) innerWidth() float64  { return max(sc.box.Width-2*sc.box.Inset, 0) }
func (sc trendScale) innerHeight() float64 { return max(sc.box.Height-2*sc.box.Inset, 0) }

func (sc trendScale) x(matchday int) float64 {
	return sc.box.Inset + (float64(matchday)-sc.minMD)/sc.spanMD*sc.innerWidth()
}

func (sc trendScale) y(rank int) float64 {
	return sc.box.Inset + float64(rank-sc.topRank)/sc.spanRank*sc.innerHeight()
}

// MapTrend maps rank history onto box coordinates, one point per sample in
// input order. Matchdays run left to right; better ranks render higher.
// Degenerate axes never divide by zero: their points sit on the left or top
// inset.
func MapTrend(samples []core.PositionSample, box Box) []Point {
	if len(samples) == 0 {
		return nil
	}
	sc := newTrendScale(samples, box)
	points := make([]Point, 0, len(samples))
	for _, s := range samples {
		points = append(points, Point{X: sc.x(s.Matchday), Y: sc.y(s.Rank), Matchday: s.Matchday, Rank: s.Rank})
	}
	return points
}

// RankTicks returns at most five evenly spread rank labels for the vertical
// axis, always including the top and bottom ranks.
func RankTicks(samples []core.PositionSample, box Box) []Tick {
	if len(samples) == 0 {
		return nil
	}
	sc := newTrendScale(samples, box)
	top, bottom := sc.topRank, sc.lowRank
	if top == bottom {
		return []Tick{{Rank: top, Y: sc.y(top)}}
	}

	step := max((bottom-top)/4, 1)
	var ticks []Tick
	for r := top; r < bottom; r += step {
		ticks = append(ticks, Tick{Rank: r, Y: sc.y(r)})
	}
	return append(ticks, Tick{Rank: bottom, Y: sc.y(bottom)})
}

// Polyline formats points as the value of an SVG points attribute.
func Polyline(points []Point) string {
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, strconv.FormatFloat(p.X, 'f', 1, 64)+","+strconv.FormatFloat(p.Y, 'f', 1, 64))
	}
	return strings.Join(parts, " ")
}
