package colval

import "strconv"

func formatFloat32(f float32) string { return strconv.FormatFloat(float64(f), 'g', -1, 32) }
func formatFloat64(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func parseFloat32(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
