// Package fit provides the absorption-line fit domain: absorbers, continuum
// points, fit regions, derived spectral lines and the Model aggregate.
package fit

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned when addressing model parameters.
var (
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrDuplicateID      = errors.New("duplicate id")
)

// Attribute names a fittable attribute of an absorber or continuum point.
type Attribute string

// Attribute values.
const (
	AttrN Attribute = "N"
	AttrB Attribute = "b"
	AttrZ Attribute = "z"
	AttrX Attribute = "x"
	AttrY Attribute = "y"
)

// AbsorberAttributes lists the fittable absorber attributes in canonical order.
var AbsorberAttributes = []Attribute{AttrN, AttrB, AttrZ}

// ContinuumAttributes lists the fittable continuum attributes in canonical order.
var ContinuumAttributes = []Attribute{AttrX, AttrY}

// String returns the attribute name.
func (a Attribute) String() string { return string(a) }

// IsAbsorber reports whether the attribute belongs to an absorber.
func (a Attribute) IsAbsorber() bool {
	return a == AttrN || a == AttrB || a == AttrZ
}

// IsContinuum reports whether the attribute belongs to a continuum point.
func (a Attribute) IsContinuum() bool {
	return a == AttrX || a == AttrY
}

// ParseAttribute parses an attribute name. Absorber names are case sensitive
// as in the fit file ("N", "b", "z").
func ParseAttribute(s string) (Attribute, error) {
	switch a := Attribute(s); a {
	case AttrN, AttrB, AttrZ, AttrX, AttrY:
		return a, nil
	}
	return "", fmt.Errorf("%w: attribute %q", ErrUnknownParameter, s)
}

// Param is the value, lock state and uncertainty of one attribute.
type Param struct {
	Value  float64
	Locked bool
	Error  float64
}

// ParameterRef addresses one attribute of one entity, written "<id>:<attr>".
type ParameterRef struct {
	Entity    string
	Attribute Attribute
}

// NewParameterRef creates a ParameterRef.
func NewParameterRef(entity string, attr Attribute) ParameterRef {
	return ParameterRef{Entity: entity, Attribute: attr}
}

// ParseParameterRef parses "<id>:<attr>".
func ParseParameterRef(s string) (ParameterRef, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return ParameterRef{}, fmt.Errorf("%w: reference %q must be <id>:<attr>", ErrUnknownParameter, s)
	}
	attr, err := ParseAttribute(s[idx+1:])
	if err != nil {
		return ParameterRef{}, err
	}
	return ParameterRef{Entity: s[:idx], Attribute: attr}, nil
}

// String returns "<id>:<attr>".
func (r ParameterRef) String() string {
	return r.Entity + ":" + string(r.Attribute)
}

// Column returns the result-sink column name "<id>_<attr>".
func (r ParameterRef) Column() string {
	return r.Entity + "_" + string(r.Attribute)
}
