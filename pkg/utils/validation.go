package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct runs the validate tags of s.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// FormatValidationErrors renders validator errors as one clause per field,
// using the JSON field path.
func FormatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonPath(fe.Namespace())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%q failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%q failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// jsonPath drops the root struct name and lowercases untagged field names:
// "ConsentRequestBody.scope[0].domain" -> "scope[0].domain".
func jsonPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	for i, s := range segments {
		if s != "" {
			segments[i] = strings.ToLower(s[:1]) + s[1:]
		}
	}
	return strings.Join(segments, ".")
}

// ValidateRequired validates that a field is not empty
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// IsInsecureURI reports whether uri uses plain http.
func IsInsecureURI(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "http://")
}
