package utils

import (
	"time"

	"github.com/go-playground/validator/v10"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// DateOnly truncates t to midnight UTC; cash-flow grouping is per calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var validate = validator.New()

// StructViolations runs go-playground struct validation and flattens the result
// into plain rule strings for ValidationError.
func StructViolations(s interface{}) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	violations := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		violations = append(violations, fe.Field()+" is "+fe.Tag())
	}
	return violations
}
