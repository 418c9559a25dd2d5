package money

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.005, 1.01},
		{1.004, 1},
		{2.675, 2.68},
		{55.00000000000001, 55},
		{-55.00000000000001, -55},
		{-1.005, -1.01},
		{-0.004, 0},
		{19.999, 20},
		{123456.785, 123456.79},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, Round2(c.in), "Round2(%v)", c.in)
	}
}

func TestRound2Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		x := (r.Float64() - 0.5) * 2e6
		once := Round2(x)
		assert.Equalf(t, once, Round2(once), "Round2 not idempotent for %v", x)
	}
}

func TestComputeTableChangeDelta(t *testing.T) {
	t.Run("upgrade", func(t *testing.T) {
		assert.Equal(t, 55.0, ComputeTableChangeDelta(100, 150, 0.1))
	})
	t.Run("downgrade", func(t *testing.T) {
		assert.Equal(t, -55.0, ComputeTableChangeDelta(150, 100, 0.1))
	})
	t.Run("same price is free", func(t *testing.T) {
		r := rand.New(rand.NewSource(11))
		for i := 0; i < 1000; i++ {
			p := Round2(r.Float64() * 5000)
			rate := r.Float64()
			assert.Equal(t, 0.0, ComputeTableChangeDelta(p, p, rate))
		}
	})
	t.Run("round trip restores total", func(t *testing.T) {
		r := rand.New(rand.NewSource(13))
		for i := 0; i < 1000; i++ {
			total := Round2(r.Float64() * 2000)
			a := Round2(r.Float64() * 1000)
			b := Round2(r.Float64() * 1000)
			down := ComputeTableChangeDelta(a, b, 0.1)
			up := ComputeTableChangeDelta(b, a, 0.1)
			after := Add(Add(total, down), up)
			assert.Truef(t, WithinCent(total, after), "total %v drifted to %v", total, after)
		}
	})
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5500), ToMinorUnits(55))
	assert.Equal(t, int64(101), ToMinorUnits(1.005))
	assert.Equal(t, int64(-5500), ToMinorUnits(-55))
	assert.Equal(t, 12.34, FromMinorUnits(1234))
	assert.True(t, WithinCent(10.00, 10.01))
	assert.False(t, WithinCent(10.00, 10.02))
}
