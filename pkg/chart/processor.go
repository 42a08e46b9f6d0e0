package chart

import (
	"sort"

	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/stats"
)

const (
	defaultMaxScatterPoints = 500
	defaultMaxSeriesPoints  = 200
	defaultMaxBars          = 25
	defaultMaxSlices        = 8
)

// Processor shapes rows into renderable series for a Spec.
type Processor struct {
	MaxScatterPoints int
	MaxSeriesPoints  int
	MaxBars          int
	MaxSlices        int
}

func NewProcessor() *Processor {
	return &Processor{
		MaxScatterPoints: defaultMaxScatterPoints,
		MaxSeriesPoints:  defaultMaxSeriesPoints,
		MaxBars:          defaultMaxBars,
		MaxSlices:        defaultMaxSlices,
	}
}

// Shape aggregates, sorts and samples rows according to the chart spec.
func (p *Processor) Shape(rows []dataset.Row, spec Spec) []Point {
	if len(rows) == 0 {
		return []Point{}
	}
	switch spec.Type {
	case TypeScatter:
		return p.shapeScatter(rows, spec)
	case TypeLine, TypeArea:
		return p.shapeSeries(rows, spec)
	case TypePie:
		return p.shapeCategorical(rows, spec, p.MaxSlices)
	default:
		return p.shapeCategorical(rows, spec, p.MaxBars)
	}
}

func (p *Processor) shapeScatter(rows []dataset.Row, spec Spec) []Point {
	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		x, okX := dataset.ToNumber(r[spec.X])
		y, okY := dataset.ToNumber(r[spec.Y])
		if !okX || !okY {
			continue
		}
		points = append(points, Point{spec.X: x, spec.Y: y})
	}
	return sample(points, p.MaxScatterPoints)
}

type group struct {
	key    string
	raw    interface{}
	order  int
	values []float64
	second []float64
	count  int
}

func (p *Processor) group(rows []dataset.Row, spec Spec) []*group {
	index := make(map[string]*group)
	var groups []*group
	for _, r := range rows {
		raw := r[spec.X]
		if dataset.IsEmpty(raw) {
			continue
		}
		key := dataset.ToString(raw)
		g, ok := index[key]
		if !ok {
			g = &group{key: key, raw: raw, order: len(groups)}
			index[key] = g
			groups = append(groups, g)
		}
		g.count++
		if v, ok := dataset.ToNumber(r[spec.Y]); ok {
			g.values = append(g.values, v)
		}
		if spec.Y2 != "" {
			if v, ok := dataset.ToNumber(r[spec.Y2]); ok {
				g.second = append(g.second, v)
			}
		}
	}
	return groups
}

func aggregate(values []float64, count int, agg Aggregate) (float64, bool) {
	if agg == AggregateCount {
		return float64(count), true
	}
	if len(values) == 0 {
		return 0, false
	}
	switch agg {
	case AggregateMean:
		var s float64
		for _, v := range values {
			s += v
		}
		return s / float64(len(values)), true
	case AggregateNone:
		return values[len(values)-1], true
	default:
		var s float64
		for _, v := range values {
			s += v
		}
		return s, true
	}
}

func (p *Processor) point(spec Spec, g *group, agg Aggregate) (Point, bool) {
	v, ok := aggregate(g.values, g.count, agg)
	if !ok {
		return nil, false
	}
	pt := Point{spec.X: g.raw, spec.Y: v}
	if spec.Y2 != "" {
		if v2, ok := aggregate(g.second, g.count, agg); ok {
			pt[spec.Y2] = v2
		}
	}
	return pt, true
}

// shapeSeries orders points along x: numerically, chronologically, or by first appearance.
func (p *Processor) shapeSeries(rows []dataset.Row, spec Spec) []Point {
	groups := p.group(rows, spec)
	agg := spec.Aggregate
	if agg == "" {
		agg = AggregateMean
	}

	allNumeric, allDates := true, true
	for _, g := range groups {
		if _, ok := dataset.ToNumber(g.raw); !ok {
			allNumeric = false
		}
		if _, ok := dataset.ParseDate(g.raw); !ok {
			allDates = false
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		switch {
		case allNumeric:
			a, _ := dataset.ToNumber(groups[i].raw)
			b, _ := dataset.ToNumber(groups[j].raw)
			return a < b
		case allDates:
			a, _ := dataset.ParseDate(groups[i].raw)
			b, _ := dataset.ParseDate(groups[j].raw)
			return a.Before(b)
		default:
			return groups[i].order < groups[j].order
		}
	})

	points := make([]Point, 0, len(groups))
	for _, g := range groups {
		if pt, ok := p.point(spec, g, agg); ok {
			points = append(points, pt)
		}
	}
	return sample(points, p.MaxSeriesPoints)
}

// shapeCategorical sorts categories by value descending and keeps the top limit.
func (p *Processor) shapeCategorical(rows []dataset.Row, spec Spec, limit int) []Point {
	groups := p.group(rows, spec)
	agg := spec.Aggregate
	if agg == "" {
		agg = AggregateSum
	}

	points := make([]Point, 0, len(groups))
	for _, g := range groups {
		if pt, ok := p.point(spec, g, agg); ok {
			points = append(points, pt)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		a, _ := dataset.ToNumber(points[i][spec.Y])
		b, _ := dataset.ToNumber(points[j][spec.Y])
		return a > b
	})
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return points
}

// sample keeps at most max points, evenly spaced, always including the last one.
func sample(points []Point, max int) []Point {
	if max <= 0 || len(points) <= max {
		return points
	}
	out := make([]Point, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		out = append(out, points[int(float64(i)*step+0.5)])
	}
	return out
}

// Column extracts the numeric values of one key from shaped points.
func Column(points []Point, key string) []float64 {
	out := make([]float64, 0, len(points))
	for _, pt := range points {
		if v, ok := dataset.ToNumber(pt[key]); ok {
			out = append(out, v)
		}
	}
	return out
}

// PaddedDomain widens [min,max] by 10% of the range on each side.
func PaddedDomain(values []float64) []float64 {
	d, ok := stats.Describe(values)
	if !ok {
		return nil
	}
	pad := (d.Max - d.Min) * 0.1
	if pad == 0 {
		pad = 1
	}
	return []float64{d.Min - pad, d.Max + pad}
}
