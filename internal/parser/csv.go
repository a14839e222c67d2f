// Package parser converts link wire formats to structured types and vice-versa.
//
// CSV telemetry parameters (Pi -> gateway) are a fixed, ordered list of
// numeric tokens. A blob decodes only when it maps exactly onto its schema.
package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultDelimiter separates CSV telemetry tokens.
const DefaultDelimiter = ","

// FieldType is the declared type of a schema field.
type FieldType uint8

const (
	FieldFloat FieldType = iota + 1
	FieldInteger
)

func (t FieldType) String() string {
	switch t {
	case FieldFloat:
		return "float"
	case FieldInteger:
		return "integer"
	default:
		return "unknown"
	}
}

// Value is one decoded token. Float is set for float fields, Int for integer fields.
type Value struct {
	Float float64
	Int   int64
}

// FieldSpec declares one position of a schema.
// Set stores the decoded value into its slot of the sample.
type FieldSpec[T any] struct {
	Name  string
	Type  FieldType
	Width int // max token characters, 0 for no limit
	Bits  int // 32 or 64, 0 means 64
	Set   func(*T, Value)
}

var (
	ErrFieldCountMismatch = errors.New("field count mismatch")
	ErrFieldParse         = errors.New("field parse error")
)

// FieldCountError reports a token count different from the schema length.
type FieldCountError struct {
	Got  int
	Want int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("expected %d fields, got %d", e.Want, e.Got)
}

func (e *FieldCountError) Is(target error) bool { return target == ErrFieldCountMismatch }

// FieldParseError reports a token that does not parse as its declared type.
type FieldParseError struct {
	Index int
	Name  string
	Type  FieldType
	Token string
	Err   error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("invalid %s %q for field %d (%s): %v", e.Type, e.Token, e.Index, e.Name, e.Err)
}

func (e *FieldParseError) Is(target error) bool { return target == ErrFieldParse }

func (e *FieldParseError) Unwrap() error { return e.Err }

// Tokenize splits text on delim. The returned tokens are trimmed substrings;
// text itself is never modified.
func Tokenize(text, delim string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	fields := strings.Split(text, delim)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// Decode parses text into a T according to schema. It returns the zero T
// unless every token parses and the token count equals len(schema).
func Decode[T any](text string, schema []FieldSpec[T], delim string) (T, error) {
	var zero T
	if delim == "" {
		delim = DefaultDelimiter
	}

	tokens := Tokenize(text, delim)
	if len(tokens) != len(schema) {
		return zero, &FieldCountError{Got: len(tokens), Want: len(schema)}
	}

	var out T
	for i, spec := range schema {
		v, err := parseToken(tokens[i], spec)
		if err != nil {
			return zero, &FieldParseError{Index: i, Name: spec.Name, Type: spec.Type, Token: tokens[i], Err: err}
		}
		if spec.Set != nil {
			spec.Set(&out, v)
		}
	}
	return out, nil
}

func parseToken[T any](tok string, spec FieldSpec[T]) (Value, error) {
	if tok == "" {
		return Value{}, errors.New("empty token")
	}
	if spec.Width > 0 && len(tok) > spec.Width {
		return Value{}, fmt.Errorf("token longer than %d characters", spec.Width)
	}
	bits := spec.Bits
	if bits == 0 {
		bits = 64
	}

	switch spec.Type {
	case FieldFloat:
		f, err := strconv.ParseFloat(tok, bits)
		if err != nil {
			return Value{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, errors.New("not a finite number")
		}
		return Value{Float: f}, nil
	case FieldInteger:
		n, err := strconv.ParseInt(tok, 10, bits)
		if err != nil {
			return Value{}, err
		}
		return Value{Int: n}, nil
	default:
		return Value{}, fmt.Errorf("unsupported field type %d", spec.Type)
	}
}
