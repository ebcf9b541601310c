package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultRecommendCount = 3
	MaxRecommendCount     = 20
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs the `validate` tags of v and folds failures into ErrInvalidInput.
func ValidateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(messages, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "gt":
		return name + " must be greater than " + fe.Param()
	case "gte":
		return name + " must be at least " + fe.Param()
	case "lte":
		return name + " must be at most " + fe.Param()
	case "max":
		return name + " must be at most " + fe.Param() + " characters"
	case "min":
		return name + " must contain at least " + fe.Param() + " item(s)"
	default:
		return name + " failed " + fe.Tag() + " validation"
	}
}

func NormalizeRecommendCount(count int) (int, error) {
	if count <= 0 {
		return DefaultRecommendCount, nil
	}
	if count > MaxRecommendCount {
		return 0, fmt.Errorf("%w: count must be <= %d", ErrInvalidInput, MaxRecommendCount)
	}
	return count, nil
}
