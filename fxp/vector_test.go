package fxp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(vals ...float32) Vector {
	v := make(Vector, len(vals))
	for i, f := range vals {
		s, err := FromFloat32(f)
		if err != nil {
			panic(err)
		}
		v[i] = s
	}
	return v
}

func TestDot(t *testing.T) {
	a := vec(1, 0, 0, 0)
	b := vec(0, 1, 0, 0)
	assert.Equal(t, Zero, Dot(a, b))
	assert.Equal(t, One, Dot(a, a))

	c := vec(2, 3, 0, 0)
	d := vec(4, 5, 0, 0)
	assert.Equal(t, Scalar(23*Scale), Dot(c, d))
}

func TestSquaredL2(t *testing.T) {
	a := vec(1, 0, 0, 0)
	b := vec(0, 1, 0, 0)
	// (1-0)^2 + (0-1)^2 = 2.0
	assert.Equal(t, Scalar(2*Scale), SquaredL2(a, b))
	assert.Equal(t, Zero, SquaredL2(a, a))
}

func TestSquaredL2NoIntermediateOverflow(t *testing.T) {
	// A difference near the full i32 span would overflow a 32-bit square;
	// the i64 path must survive and saturate only at the final clamp.
	a := Vector{Max}
	b := Vector{Min}
	assert.Equal(t, Max, SquaredL2(a, b))
}

func TestSquaredL2ErrorBound(t *testing.T) {
	// For inputs in a modest range the fixed-point distance tracks a
	// float64 reference within D * 2^-14 (each squared term truncates at
	// most 2^-16, amplified by the magnitudes involved).
	const dim = 16
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		a := make(Vector, dim)
		b := make(Vector, dim)
		ref := 0.0
		for i := 0; i < dim; i++ {
			fa := rng.Float64()*8 - 4
			fb := rng.Float64()*8 - 4
			sa, err := FromFloat32(float32(fa))
			require.NoError(t, err)
			sb, err := FromFloat32(float32(fb))
			require.NoError(t, err)
			a[i], b[i] = sa, sb
			da := float64(sa) / Scale
			db := float64(sb) / Scale
			ref += (da - db) * (da - db)
		}
		got := float64(ToFloat32(SquaredL2(a, b)))
		assert.InDelta(t, ref, got, dim*math32)
	}
}

const math32 = 1.0 / (1 << 14)

func TestSquaredL2IsStableAcrossCalls(t *testing.T) {
	// Full-span differences in every lane: each squared term is about 2^48,
	// so the 64-term i64 sum does not saturate and only the final clamp to
	// i32 does. This is a smoke check that results are stable across runs.
	a := make(Vector, 64)
	b := make(Vector, 64)
	for i := range a {
		a[i] = Max
		b[i] = Min
	}
	first := SquaredL2(a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, SquaredL2(a, b))
	}
}
