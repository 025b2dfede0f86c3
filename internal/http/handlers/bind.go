package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidPayload  = apperr.New(apperr.KindInvalidPayload, "Invalid request body")
	ErrBodyTooLarge    = apperr.New(apperr.KindInvalidPayload, "Request body too large")
	ErrValidationError = apperr.New(apperr.KindValidationError, "Validation Error")
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the body into out. On failure the error is
// recorded for the error stage and false is returned.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		Fail(ctx, bindError(err, out))
		return false
	}
	return true
}

// bindError classifies a decode/validate failure: broken JSON is an invalid
// payload, tag and type violations are a named validation error.
func bindError(err error, out interface{}) error {
	root := structType(out)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fieldPath(root, fe),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe.Tag(), fe.Param()),
			})
		}
		return apperr.WithDetails(ErrValidationError, gin.H{"fields": fields})
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := jsonPath(root, splitPath(typeErr.Field))
		if field == "" {
			field = typeErr.Field
		}
		return apperr.WithDetails(ErrValidationError, gin.H{
			"json": "invalid_json_type",
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		})
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrBodyTooLarge
	}

	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &syntaxErr):
		return apperr.WithDetails(ErrInvalidPayload, gin.H{"json": "invalid_json_syntax"})
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.WithDetails(ErrInvalidPayload, gin.H{"json": "empty_or_truncated_body"})
	}

	return apperr.WithDetails(ErrInvalidPayload, gin.H{"reason": err.Error()})
}

func structType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		return t
	}
	return nil
}

// fieldPath maps a validator namespace ("RegisterRequest.Email") to the
// JSON path the client sent ("email").
func fieldPath(root reflect.Type, fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if ns == "" {
		return fe.Field()
	}

	parts := strings.Split(ns, ".")
	if root != nil && len(parts) > 0 && parts[0] == root.Name() {
		parts = parts[1:]
	}

	if p := jsonPath(root, parts); p != "" {
		return p
	}
	return fe.Field()
}

func splitPath(dotted string) []string {
	dotted = strings.TrimSpace(dotted)
	if dotted == "" {
		return nil
	}
	return strings.Split(dotted, ".")
}

func jsonPath(root reflect.Type, parts []string) string {
	out := make([]string, 0, len(parts))
	cur := root

	for _, part := range parts {
		if part == "" {
			continue
		}

		name, index := part, ""
		if i := strings.Index(part, "["); i >= 0 {
			name, index = part[:i], part[i:]
		}

		jsonName := name
		var next reflect.Type

		for cur != nil && cur.Kind() == reflect.Pointer {
			cur = cur.Elem()
		}
		if cur != nil && cur.Kind() == reflect.Struct {
			if sf, ok := cur.FieldByName(name); ok {
				jsonName = jsonTagName(sf)
				next = elemType(sf.Type)
			}
		}

		out = append(out, jsonName+index)
		cur = next
	}

	return strings.Join(out, ".")
}

func jsonTagName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

func elemType(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}
	return nil
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
