package dosing

import "testing"

func TestFineBuckets(t *testing.T) {
	if got := FineAgeBucket(67); got != 67 {
		t.Errorf("FineAgeBucket(67) = %d, want 67", got)
	}
	if got := FineAgeBucket(-1); got != 0 {
		t.Errorf("FineAgeBucket(-1) = %d, want 0", got)
	}
	if got := FineWeightBucket(72.6); got != 73 {
		t.Errorf("FineWeightBucket(72.6) = %d, want 73", got)
	}
	if got := FineWeightBucket(72.4); got != 72 {
		t.Errorf("FineWeightBucket(72.4) = %d, want 72", got)
	}
}

func TestCoarseWeightBucket(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{15.3, 15.0},
		{38.2, 37.5},
		{39.9, 40.0},
		{72.3, 70.0},
		{73.0, 75.0},
		{40.0, 40.0},
	}
	for _, tc := range cases {
		if got := CoarseWeightBucket(tc.in); got != tc.want {
			t.Errorf("CoarseWeightBucket(%.1f) = %.1f, want %.1f", tc.in, got, tc.want)
		}
	}
}

func TestRatioBucket(t *testing.T) {
	if got := RatioBucket(1.24); got != 1.2 {
		t.Errorf("RatioBucket(1.24) = %.2f, want 1.2", got)
	}
	if got := RatioBucket(1.25); got != 1.3 {
		t.Errorf("RatioBucket(1.25) = %.2f, want 1.3", got)
	}
	if got := RatioKey(0.96); got != "1.0" {
		t.Errorf("RatioKey(0.96) = %q, want \"1.0\"", got)
	}
}

func TestBMIClass(t *testing.T) {
	cases := []struct {
		bmi  float64
		want string
	}{
		{14, "severely_underweight"},
		{17.9, "severely_underweight"},
		{18.1, "underweight"},
		{19.3, "underweight"},
		{20, "normal"},
		{24.49, "normal"},
		{24.9, "normal"},
		{25.1, "overweight"},
		{28.1, "overweight"},
		{33.2, "obese_1"},
		{38.5, "obese_2"},
		{40, "obese_3"},
		{45.7, "obese_3"},
	}
	for _, tc := range cases {
		if got := BMIClass(tc.bmi); got != tc.want {
			t.Errorf("BMIClass(%.2f) = %q, want %q", tc.bmi, got, tc.want)
		}
	}
	// Class boundaries split neighbors, values inside a class share a bucket.
	if BMIClass(15.9) != BMIClass(16.1) {
		t.Error("expected 15.9 and 16.1 to share the severely_underweight class")
	}
	if BMIClass(17.9) == BMIClass(18.1) {
		t.Error("expected 17.9 and 18.1 to fall in different classes")
	}
}
