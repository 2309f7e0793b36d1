package colval

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ValidateDecimal checks that s is a syntactically valid decimal
// literal within the column's precision/scale, using shopspring/decimal
// for arbitrary-precision arithmetic rather than a binary float so
// that the check itself cannot introduce the rounding error spec §3
// forbids. It returns s unchanged: the canonical string is always the
// wire representation, never a value reconstructed from the parsed
// decimal.
func ValidateDecimal(s string, precision, scale int) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", errors.Wrapf(err, "invalid decimal literal %q", s)
	}
	digits := d.NumDigits()
	if precision > 0 && digits > precision {
		return "", errors.Errorf("decimal %q exceeds precision %d", s, precision)
	}
	if scale > 0 && -d.Exponent() > int32(scale) {
		return "", errors.Errorf("decimal %q exceeds scale %d", s, scale)
	}
	return s, nil
}
