package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	govalidator "github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every offending field, not just the first.
type ValidationError struct {
	JobType string       `json:"job_type"`
	Fields  []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Message))
	}
	return fmt.Sprintf("invalid %s payload: %s", e.JobType, strings.Join(parts, "; "))
}

var validate = newValidator()

func newValidator() *govalidator.Validate {
	v := govalidator.New(govalidator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate type-checks raw against the job type's schema and returns the
// normalized payload on success.
func Validate(jobType string, raw json.RawMessage) (json.RawMessage, error) {
	build, ok := schemas[jobType]
	if !ok {
		return nil, fmt.Errorf("no payload schema for job type %q", jobType)
	}

	payload := build()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, &ValidationError{
			JobType: jobType,
			Fields:  []FieldError{{Field: "payload", Message: err.Error()}},
		}
	}

	if err := validate.Struct(payload); err != nil {
		var fieldErrs govalidator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			verr := &ValidationError{JobType: jobType}
			for _, fe := range fieldErrs {
				verr.Fields = append(verr.Fields, FieldError{
					Field:   fieldPath(fe),
					Message: messageFor(fe),
				})
			}
			return nil, verr
		}
		return nil, err
	}

	normalized, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func fieldPath(fe govalidator.FieldError) string {
	// Namespace looks like "PublishPostPayload.platforms[1]"; drop the root.
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func messageFor(fe govalidator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have length at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must have length at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "datetime":
		return fmt.Sprintf("must match format %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
