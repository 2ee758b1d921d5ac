package indicator

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// LastSMA returns the most recent SMA value. ok is false when there are
// fewer than period prices.
func LastSMA(prices []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// Rising reports whether the SMA of the given period is higher now than it
// was lookback bars ago.
func Rising(prices []float64, period, lookback int) (rising bool, ok bool) {
	sma := SMA(prices, period)
	if lookback <= 0 || len(sma) <= lookback {
		return false, false
	}
	return sma[len(sma)-1] > sma[len(sma)-1-lookback], true
}
