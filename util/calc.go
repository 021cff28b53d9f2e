package util

import (
	"math"
	"sort"
)

func CalcMean(numbers []float64) float64 {
	sum := 0.0
	for _, num := range numbers {
		sum += num
	}
	return sum / float64(len(numbers))
}

// CalcMedian returns the median of numbers without mutating the input. For an
// even count it is the arithmetic mean of the two middle order statistics.
func CalcMedian(numbers []float64) float64 {
	if len(numbers) == 0 {
		return 0
	}

	sorted := make([]float64, len(numbers))
	copy(sorted, numbers)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// CalcStandardDeviation returns the population standard deviation.
func CalcStandardDeviation(numbers []float64) float64 {
	mean := CalcMean(numbers)
	variance := 0.0
	for _, num := range numbers {
		diff := num - mean
		variance += diff * diff
	}
	variance /= float64(len(numbers))
	return math.Sqrt(variance)
}

// CalcSampleStandardDeviation returns the sample standard deviation with
// Bessel's correction. Zero for fewer than two numbers.
func CalcSampleStandardDeviation(numbers []float64) float64 {
	if len(numbers) < 2 {
		return 0
	}

	mean := CalcMean(numbers)
	variance := 0.0
	for _, num := range numbers {
		diff := num - mean
		variance += diff * diff
	}
	variance /= float64(len(numbers) - 1)
	return math.Sqrt(variance)
}

func CalcCoeficientOfVariation(numbers []float64) float64 {
	mean := CalcMean(numbers)
	stdDev := CalcStandardDeviation(numbers)
	return (stdDev / mean) * 100
}
