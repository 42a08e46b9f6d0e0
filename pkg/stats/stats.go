package stats

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"ai-insights-be/pkg/dataset"
)

// Descriptive holds the summary statistics used across insights and prompts.
type Descriptive struct {
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P80    float64 `json:"p80"`
	P90    float64 `json:"p90"`
	StdDev float64 `json:"stdDev"`
	CV     float64 `json:"cv"`
}

// Describe returns false for an empty input.
func Describe(values []float64) (Descriptive, bool) {
	if len(values) == 0 {
		return Descriptive{}, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var sq float64
	for _, v := range sorted {
		sq += (v - mean) * (v - mean)
	}
	std := 0.0
	if len(sorted) > 1 {
		std = math.Sqrt(sq / float64(len(sorted)-1))
	}
	cv := 0.0
	if mean != 0 {
		cv = std / math.Abs(mean)
	}

	return Descriptive{
		Count:  len(sorted),
		Sum:    sum,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: Percentile(sorted, 50),
		P25:    Percentile(sorted, 25),
		P75:    Percentile(sorted, 75),
		P80:    Percentile(sorted, 80),
		P90:    Percentile(sorted, 90),
		StdDev: std,
		CV:     cv,
	}, true
}

// Percentile uses linear interpolation between closest ranks. sorted must be ascending.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Paired extracts (x, y) pairs using pairwise deletion: a row participates
// only when both cells parse as numbers.
func Paired(rows []dataset.Row, xCol, yCol string) (xs, ys []float64) {
	for _, r := range rows {
		x, okX := dataset.ToNumber(r[xCol])
		if !okX {
			continue
		}
		y, okY := dataset.ToNumber(r[yCol])
		if !okY {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// Pearson returns false when fewer than two pairs exist or either side has zero variance.
func Pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}

	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += xs[i]
		sy += ys[i]
	}
	mx := sx / float64(n)
	my := sy / float64(n)

	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(vx*vy)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// Correlation is a signed Pearson coefficient of a candidate against a target.
type Correlation struct {
	Variable string  `json:"variable"`
	R        float64 `json:"correlation"`
	N        int     `json:"n"`
}

// Correlate computes Pearson r of candidate against target with pairwise deletion.
func Correlate(rows []dataset.Row, target, candidate string) (Correlation, bool) {
	xs, ys := Paired(rows, candidate, target)
	r, ok := Pearson(xs, ys)
	if !ok {
		return Correlation{}, false
	}
	return Correlation{Variable: candidate, R: r, N: len(xs)}, true
}

// Regression is a least-squares line y = Slope*x + Intercept.
type Regression struct {
	Slope     float64
	Intercept float64
}

func (r Regression) At(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// LinearRegression uses the closed form; nil when the x values are degenerate.
func LinearRegression(xs, ys []float64) *Regression {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return nil
	}
	var sx, sy, sxy, sxx float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxy += xs[i] * ys[i]
		sxx += xs[i] * xs[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return nil
	}
	slope := (n*sxy - sx*sy) / denom
	return &Regression{Slope: slope, Intercept: (sy - slope*sx) / n}
}

// Strength buckets |r|.
func Strength(r float64) string {
	a := math.Abs(r)
	switch {
	case a > 0.7:
		return "strong"
	case a > 0.4:
		return "moderate"
	default:
		return "weak"
	}
}

// Direction buckets the sign of r with a small dead zone around zero.
func Direction(r float64) string {
	switch {
	case r > 0.15:
		return "positive"
	case r < -0.15:
		return "negative"
	default:
		return "weak"
	}
}

// SignWord never flips the sign of r, unlike Direction.
func SignWord(r float64) string {
	if r < 0 {
		return "negative"
	}
	return "positive"
}

// Format renders a number compactly for prose: at most two decimals, thousands grouped.
func Format(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		s = "0"
	}
	return groupThousands(s)
}

// FormatExact keeps full precision.
func FormatExact(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if neg {
		return "-" + intPart + frac
	}
	return intPart + frac
}
