package vector

import "math"

// Normalize returns a unit-length copy of v. The zero vector stays zero.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// Prepare is the single normalization step shared by index builds,
// incremental adds and queries. Cosine indexes get unit vectors; L2 indexes
// get an untouched copy.
func Prepare(m Metric, v []float32) []float32 {
	if m == MetricCosine {
		return Normalize(v)
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// score computes the metric value between a and b.
func score(m Metric, a, b []float32) float32 {
	var s float64
	if m == MetricCosine {
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return float32(s)
	}
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return float32(s)
}

// better orders two scored rows: the better score first, ties by position.
func better(m Metric, a, b scored) bool {
	if a.score != b.score {
		if m.HigherIsBetter() {
			return a.score > b.score
		}
		return a.score < b.score
	}
	return a.pos < b.pos
}
