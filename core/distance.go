package core

import (
	"fmt"
	"math"
)

// The functions below implement the pointwise distance functions used
// throughout the package. Each returns an error when the operand lengths
// mismatch, and the parameterized ones (standardised Euclidean, Minkowski,
// weighted Minkowski) also when a parameter is out of range; degenerate
// (e.g. all-zero) vectors never produce NaN, since the defined sentinel
// values documented per function are returned instead.

// SquaredEuclideanDistance computes Σ(xᵢ − yᵢ)².
func SquaredEuclideanDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("squared_euclidean: %w: %d != %d", ErrDimensionMismatch, len(x), len(y))
	}
	var sum float32
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	return sum, nil
}

// EuclideanDistance computes √squared_euclidean.
func EuclideanDistance(x, y []float32) (float32, error) {
	sq, err := SquaredEuclideanDistance(x, y)
	if err != nil {
		return 0, fmt.Errorf("euclidean: %w", err)
	}
	return float32(math.Sqrt(float64(sq))), nil
}

// StandardisedEuclideanDistance computes √Σ((xᵢ − yᵢ)² / vᵢ). Every vᵢ must
// be strictly positive.
func StandardisedEuclideanDistance(x, y, v []float32) (float32, error) {
	if len(x) != len(y) || len(x) != len(v) {
		return 0, fmt.Errorf("standardised_euclidean: %w", ErrDimensionMismatch)
	}
	var sum float32
	for i := range x {
		if v[i] <= 0 {
			return 0, fmt.Errorf("standardised_euclidean: %w: variance[%d]=%v", ErrInvalidParam, i, v[i])
		}
		d := x[i] - y[i]
		sum += (d * d) / v[i]
	}
	return float32(math.Sqrt(float64(sum))), nil
}

// ManhattanDistance computes Σ|xᵢ − yᵢ|.
func ManhattanDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("manhattan: %w", ErrDimensionMismatch)
	}
	var sum float32
	for i := range x {
		sum += float32(math.Abs(float64(x[i] - y[i])))
	}
	return sum, nil
}

// ChebyshevDistance computes maxᵢ|xᵢ − yᵢ|, or 0 for empty vectors.
func ChebyshevDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("chebyshev: %w", ErrDimensionMismatch)
	}
	var max float32
	for i := range x {
		d := float32(math.Abs(float64(x[i] - y[i])))
		if d > max {
			max = d
		}
	}
	return max, nil
}

// MinkowskiDistance computes (Σ|xᵢ − yᵢ|^p)^(1/p). p must be > 0.
func MinkowskiDistance(x, y []float32, p float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("minkowski: %w", ErrDimensionMismatch)
	}
	if p <= 0 {
		return 0, fmt.Errorf("minkowski: %w: p=%v", ErrInvalidParam, p)
	}
	var sum float64
	pf := float64(p)
	for i := range x {
		d := math.Abs(float64(x[i] - y[i]))
		sum += math.Pow(d, pf)
	}
	return float32(math.Pow(sum, 1.0/pf)), nil
}

// WeightedMinkowskiDistance computes (Σ wᵢ|xᵢ − yᵢ|^p)^(1/p).
func WeightedMinkowskiDistance(x, y, w []float32, p float32) (float32, error) {
	if len(x) != len(y) || len(x) != len(w) {
		return 0, fmt.Errorf("weighted_minkowski: %w", ErrDimensionMismatch)
	}
	if p <= 0 {
		return 0, fmt.Errorf("weighted_minkowski: %w: p=%v", ErrInvalidParam, p)
	}
	var sum float64
	pf := float64(p)
	for i := range x {
		d := math.Abs(float64(x[i] - y[i]))
		sum += float64(w[i]) * math.Pow(d, pf)
	}
	return float32(math.Pow(sum, 1.0/pf)), nil
}

// HammingDistance computes |{i : xᵢ ≠ yᵢ}| / n.
func HammingDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("hamming: %w", ErrDimensionMismatch)
	}
	if len(x) == 0 {
		return 0, nil
	}
	var diff int
	for i := range x {
		if x[i] != y[i] {
			diff++
		}
	}
	return float32(diff) / float32(len(x)), nil
}

// CanberraDistance computes Σ|xᵢ − yᵢ|/(|xᵢ|+|yᵢ|), skipping terms whose
// denominator is 0.
func CanberraDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("canberra: %w", ErrDimensionMismatch)
	}
	var sum float32
	for i := range x {
		denom := float32(math.Abs(float64(x[i])) + math.Abs(float64(y[i])))
		if denom == 0 {
			continue
		}
		sum += float32(math.Abs(float64(x[i]-y[i]))) / denom
	}
	return sum, nil
}

// BrayCurtisDistance computes Σ|xᵢ − yᵢ| / Σ|xᵢ + yᵢ|, returning 0 when the
// denominator is 0.
func BrayCurtisDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("bray_curtis: %w", ErrDimensionMismatch)
	}
	var num, denom float32
	for i := range x {
		num += float32(math.Abs(float64(x[i] - y[i])))
		denom += float32(math.Abs(float64(x[i] + y[i])))
	}
	if denom == 0 {
		return 0, nil
	}
	return num / denom, nil
}

// JaccardDistance computes (nz - eq) / nz where nz counts dimensions with
// either operand nonzero and eq counts dimensions where both are nonzero.
// Returns 0 if nz is 0.
func JaccardDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("jaccard: %w", ErrDimensionMismatch)
	}
	var nz, eq int
	for i := range x {
		xNZ := x[i] != 0
		yNZ := y[i] != 0
		if xNZ || yNZ {
			nz++
			if xNZ && yNZ {
				eq++
			}
		}
	}
	if nz == 0 {
		return 0, nil
	}
	return float32(nz-eq) / float32(nz), nil
}

// CosineDistance computes 1 − (x·y)/(‖x‖‖y‖). Returns 0 if both norms are 0,
// 1 if exactly one norm is 0.
func CosineDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("cosine: %w", ErrDimensionMismatch)
	}
	var dot, normX, normY float32
	for i := range x {
		dot += x[i] * y[i]
		normX += x[i] * x[i]
		normY += y[i] * y[i]
	}
	zx, zy := normX == 0, normY == 0
	switch {
	case zx && zy:
		return 0, nil
	case zx != zy:
		return 1, nil
	}
	return 1 - dot/float32(math.Sqrt(float64(normX))*math.Sqrt(float64(normY))), nil
}

// DotDistance computes max(0, 1 − x·y), clamped to 1 when x·y <= 0.
func DotDistance(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("dot: %w", ErrDimensionMismatch)
	}
	var dot float32
	for i := range x {
		dot += x[i] * y[i]
	}
	if dot <= 0 {
		return 1, nil
	}
	d := 1 - dot
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// AlternativeCosine computes log2(‖x‖‖y‖ / (x·y)), the order-preserving
// stand-in for CosineDistance used inside the build loop. It returns +Inf
// when the result is degenerate (non-positive dot product or a zero norm).
func AlternativeCosine(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("alternative_cosine: %w", ErrDimensionMismatch)
	}
	var dot, normX, normY float32
	for i := range x {
		dot += x[i] * y[i]
		normX += x[i] * x[i]
		normY += y[i] * y[i]
	}
	if dot <= 0 || normX == 0 || normY == 0 {
		return float32(math.Inf(1)), nil
	}
	ratio := float64(normX) * float64(normY) / float64(dot*dot)
	return float32(0.5 * math.Log2(ratio)), nil
}

// CorrectAlternativeCosine maps an AlternativeCosine value back to a true
// CosineDistance value: 1 − 2^−d.
func CorrectAlternativeCosine(d float32) float32 {
	if math.IsInf(float64(d), 1) {
		return 1
	}
	return float32(1 - math.Exp2(-float64(d)))
}

// AlternativeDot computes −log2(x·y), the order-preserving stand-in for
// DotDistance. Returns +Inf when x·y <= 0.
func AlternativeDot(x, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("alternative_dot: %w", ErrDimensionMismatch)
	}
	var dot float32
	for i := range x {
		dot += x[i] * y[i]
	}
	if dot <= 0 {
		return float32(math.Inf(1)), nil
	}
	return float32(-math.Log2(float64(dot))), nil
}

// CorrectAlternativeDot maps an AlternativeDot value back to a true
// DotDistance value: 1 − 2^−d, floored at 0 like DotDistance itself.
func CorrectAlternativeDot(d float32) float32 {
	if math.IsInf(float64(d), 1) {
		return 1
	}
	r := 1 - math.Exp2(-float64(d))
	if r < 0 {
		return 0
	}
	return float32(r)
}

// CorrectSquaredEuclidean maps the squared-Euclidean alternative back to a
// true EuclideanDistance value: √d.
func CorrectSquaredEuclidean(d float32) float32 {
	return float32(math.Sqrt(float64(d)))
}
