package dosing

import (
	"math"
	"strconv"
)

// Fine buckets hold per-integer learning data; coarse buckets group
// patients for the categorical body-composition factors.

// FineAgeBucket truncates to whole years.
func FineAgeBucket(age int) int {
	if age < 0 {
		return 0
	}
	return age
}

// FineWeightBucket rounds to the nearest whole kilogram.
func FineWeightBucket(weightKG float64) int {
	if weightKG < 0 {
		return 0
	}
	return int(math.Round(weightKG))
}

// CoarseWeightBucket rounds to 2.5 kg steps below 40 kg and 5 kg steps
// above, so pediatric-range weights keep finer resolution.
func CoarseWeightBucket(weightKG float64) float64 {
	if weightKG < 0 {
		return 0
	}
	if weightKG < 40 {
		return math.Round(weightKG/2.5) * 2.5
	}
	return math.Round(weightKG/5) * 5
}

// RatioBucket rounds a body-weight ratio to one decimal place.
func RatioBucket(ratio float64) float64 {
	return math.Round(ratio*10) / 10
}

// BMI class upper boundaries (exclusive), ordered.
var bmiBounds = []struct {
	upper float64
	label string
}{
	{18, "severely_underweight"},
	{20, "underweight"},
	{25, "normal"},
	{30, "overweight"},
	{35, "obese_1"},
	{40, "obese_2"},
}

// BMIClass maps a BMI value to one of seven class labels; values of 40 and
// above are obese_3.
func BMIClass(bmi float64) string {
	for _, b := range bmiBounds {
		if bmi < b.upper {
			return b.label
		}
	}
	return "obese_3"
}

// RatioKey formats a coarse ratio bucket for use as a store key.
func RatioKey(ratio float64) string {
	return strconv.FormatFloat(RatioBucket(ratio), 'f', 1, 64)
}

// WeightKey formats a coarse weight bucket for use as a store key.
func WeightKey(weightKG float64) string {
	return strconv.FormatFloat(CoarseWeightBucket(weightKG), 'f', 1, 64)
}
