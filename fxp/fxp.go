// Package fxp implements Q16.16 fixed-point arithmetic.
//
// A Scalar is a signed 32-bit integer whose real value is int/2^16. All
// operations are pure integer functions of their inputs and produce
// byte-identical results on every target; no floating point participates in
// any operation that affects kernel state. Add and Sub saturate at the i32
// bounds instead of wrapping; Mul widens to i64, shifts and clamps.
package fxp

import (
	"math"

	"github.com/varshith-Git/valori/core"
)

// Scalar is a Q16.16 fixed-point number stored as a raw signed 32-bit value.
type Scalar int32

const (
	// FracBits is the number of fractional bits in the Q16.16 format.
	FracBits = 16

	// Scale is the raw representation of 1.0.
	Scale = 1 << FracBits

	// Zero and One are the common constants.
	Zero Scalar = 0
	One  Scalar = Scale

	// Max and Min bound the representable range, roughly ±32768.0.
	Max Scalar = math.MaxInt32
	Min Scalar = math.MinInt32
)

// Add returns a+b, saturating at the i32 bounds.
func Add(a, b Scalar) Scalar {
	return sat64(int64(a) + int64(b))
}

// Sub returns a-b, saturating at the i32 bounds.
func Sub(a, b Scalar) Scalar {
	return sat64(int64(a) - int64(b))
}

// Mul returns a*b rescaled to Q16.16. The product is computed in i64,
// shifted right by FracBits and clamped to the i32 range.
func Mul(a, b Scalar) Scalar {
	return sat64((int64(a) * int64(b)) >> FracBits)
}

// sat64 clamps v to the i32 range.
func sat64(v int64) Scalar {
	if v > math.MaxInt32 {
		return Max
	}
	if v < math.MinInt32 {
		return Min
	}
	return Scalar(v)
}

// FromFloat32 converts f to a Scalar. It is permitted only at the API
// boundary, never in state-affecting code. Values outside the Q16.16 safe
// range (or NaN) return ErrValueOutOfRange.
func FromFloat32(f float32) (Scalar, error) {
	if f != f { // NaN
		return 0, core.ErrValueOutOfRange
	}
	scaled := float64(f) * Scale
	if scaled > math.MaxInt32 || scaled < math.MinInt32 {
		return 0, core.ErrValueOutOfRange
	}
	return Scalar(int32(scaled)), nil
}

// ToFloat32 converts s to float32. Boundary use only.
func ToFloat32(s Scalar) float32 {
	return float32(s) / Scale
}
