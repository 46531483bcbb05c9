package core

import "fmt"

// ValidateBuildArgs rejects malformed build arguments at the API boundary:
// k <= 0, k >= N, dimension mismatch, unknown metric, negative p,
// nonpositive standardization variance.
func ValidateBuildArgs(n, dim, k int, params BuildParams) error {
	if k <= 0 || k >= n {
		return fmt.Errorf("%w: k=%d, n=%d", ErrInvalidK, k, n)
	}
	if dim <= 0 {
		return fmt.Errorf("%w: dimension=%d", ErrInvalidDimension, dim)
	}
	if _, _, _, ok := Lookup(params.Metric); !ok {
		return fmt.Errorf("%w: %v", ErrInvalidDistance, params.Metric)
	}
	if err := ValidateMetricParams(params.Metric, dim, params.MetricParams); err != nil {
		return fmt.Errorf("metric parameters: %w", err)
	}
	if params.Delta <= 0 || params.Delta > 1 {
		return fmt.Errorf("%w: delta=%v must be in (0,1]", ErrInvalidParam, params.Delta)
	}
	if params.Rho <= 0 || params.Rho > 1 {
		return fmt.Errorf("%w: rho=%v must be in (0,1]", ErrInvalidParam, params.Rho)
	}
	return nil
}

// ValidateQueryArgs rejects malformed query arguments.
func ValidateQueryArgs(dataDim, queryDim, kq int, epsilon float32) error {
	if queryDim != dataDim {
		return fmt.Errorf("%w: query dim=%d, data dim=%d", ErrInvalidDimension, queryDim, dataDim)
	}
	if kq <= 0 {
		return fmt.Errorf("%w: k=%d", ErrInvalidK, kq)
	}
	if epsilon < 0 {
		return fmt.Errorf("%w: epsilon=%v must be >= 0", ErrInvalidParam, epsilon)
	}
	return nil
}
