package model

import "fmt"

func errRange(field string, lo, hi, got float64) error {
	return fmt.Errorf("%s must be between %g and %g, got %g", field, lo, hi, got)
}

func errConstraint(msg string) error {
	return fmt.Errorf("%s", msg)
}
