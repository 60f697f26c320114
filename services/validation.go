package services

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// dateLayout is the wire format of preferred dates
const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the request body
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateStruct checks input against its validate tags and converts the first
// failure into a ValidationError naming the offending field
func validateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewValidationError("VALIDATION_ERROR", "Invalid request data")
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	svcErr := NewValidationError("VALIDATION_ERROR", "%s", fieldMessage(field, fe)).With("field", field)
	if idx, ok := itemIndex(field); ok {
		svcErr.With("item_index", idx)
	}
	return svcErr
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s entry", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// itemIndex extracts N from a "selected_items[N]..." field path
func itemIndex(field string) (int, bool) {
	open := strings.Index(field, "[")
	end := strings.Index(field, "]")
	if open < 0 || end < open {
		return 0, false
	}
	idx, err := strconv.Atoi(field[open+1 : end])
	if err != nil {
		return 0, false
	}
	return idx, true
}
