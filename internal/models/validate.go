package models

import (
	"errors"
	"reflect"
	"strings"

	"learnflow/internal/errs"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(QuizQuestion)
		if len(q.Options) > 0 && q.CorrectAnswer >= len(q.Options) {
			sl.ReportError(q.CorrectAnswer, "correctAnswer", "CorrectAnswer", "option_index", "")
		}
	}, QuizQuestion{})
	return v
}

// Validate checks v against its struct tags and reports the first offending field
// as an *errs.ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.NewValidation("", "%v", err)
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return &errs.ValidationError{Field: field, Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "option_index":
		return "must index into options"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
