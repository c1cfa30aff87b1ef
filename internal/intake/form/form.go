// Package form binds submitted form values against an explicit schema.
//
// A Schema enumerates every field and the checks it must pass; nothing is
// discovered by reflecting over struct fields. Each check is a
// go-playground/validator tag evaluated against the single trimmed value.
package form

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Check is one rule on a field. Tag uses validator syntax ("required",
// "oneof=a b").
type Check struct {
	Tag     string
	Message string
}

// Field declares one form input and its checks, evaluated in order; the first
// failing check supplies the field's message.
type Field struct {
	Name   string
	Checks []Check
}

// Schema is the ordered set of fields a form accepts.
type Schema []Field

// Required is shorthand for a non-empty check.
func Required(message string) Check {
	return Check{Tag: "required", Message: message}
}

// OneOf accepts only the listed values. An empty value passes; pair with
// Required when the field is mandatory.
func OneOf(message string, values ...string) Check {
	return Check{Tag: "omitempty,oneof=" + strings.Join(values, " "), Message: message}
}

// Result is the outcome of binding: the trimmed value of every schema field
// and a message per failing field.
type Result struct {
	Values map[string]string
	Errors map[string]string
}

// Valid reports whether every field passed.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Value returns the bound value of a field.
func (r Result) Value(name string) string {
	return r.Values[name]
}

// Error returns the message for a field, or "".
func (r Result) Error(name string) string {
	return r.Errors[name]
}

// Names lists the schema's field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Empty returns a Result with every field blank and no errors.
func (s Schema) Empty() Result {
	values := make(map[string]string, len(s))
	for _, f := range s {
		values[f.Name] = ""
	}
	return Result{Values: values, Errors: map[string]string{}}
}

// Bind trims and checks the values the schema declares; values for unknown
// names are dropped. A value consisting only of whitespace is empty.
func (s Schema) Bind(values map[string]string) Result {
	res := Result{
		Values: make(map[string]string, len(s)),
		Errors: map[string]string{},
	}
	for _, f := range s {
		v := strings.TrimSpace(values[f.Name])
		res.Values[f.Name] = v
		for _, c := range f.Checks {
			if err := validate.Var(v, c.Tag); err != nil {
				res.Errors[f.Name] = c.Message
				break
			}
		}
	}
	return res
}
