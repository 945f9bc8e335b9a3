package scoring

import "math"

// rawBands is the listening/reading conversion for a 40-question module:
// the lowest raw score that earns each band.
var rawBands = []struct {
	min  int
	band float64
}{
	{39, 9.0},
	{37, 8.5},
	{35, 8.0},
	{32, 7.5},
	{30, 7.0},
	{26, 6.5},
	{23, 6.0},
	{18, 5.5},
	{16, 5.0},
	{13, 4.5},
	{10, 4.0},
	{8, 3.5},
	{6, 3.0},
	{4, 2.5},
	{2, 2.0},
	{1, 1.0},
}

// BandScore converts a raw correct count to an IELTS band. Modules with a
// question count other than 40 are scaled to 40 first.
func BandScore(correct, total int) float64 {
	if total <= 0 || correct <= 0 {
		return 0
	}
	if correct > total {
		correct = total
	}
	raw := correct
	if total != 40 {
		raw = int(math.Round(float64(correct) * 40 / float64(total)))
	}
	for _, b := range rawBands {
		if raw >= b.min {
			return b.band
		}
	}
	return 0
}
