// Package indicators holds the pure math kernels the signal layer runs on:
// simple moving averages and average true range. No state, no I/O.
package indicators

// SMA computes the simple moving average series over the input. The output
// is aligned the way talib aligns it: output[i] is the average of
// series[i .. i+period-1], so the result has len(series)-period+1 values.
// Inputs shorter than the period yield an empty slice, not an error.
func SMA(series []float64, period int) []float64 {
	if period <= 0 || len(series) < period {
		return nil
	}

	out := make([]float64, 0, len(series)-period+1)
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= period {
			sum -= series[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}
