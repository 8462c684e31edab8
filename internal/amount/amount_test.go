package amount

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplyIsExactForLargeValues(t *testing.T) {
	a := MustParse("1000000000000")
	b := MustParse("1000000000000")
	assert.Equal(t, "1000000000000000000000000", Multiply(a, b).String())

	huge := MustParse("340282366920938463463374607431768211455") // 2^128-1
	assert.Equal(t,
		"115792089237316195423570985008687907852589419931798687112530834793049593217025",
		Multiply(huge, huge).String(),
	)
}

func TestDivide(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		want    string
		wantErr error
	}{
		{name: "exact", a: "500", b: "10", want: "50"},
		{name: "floors", a: "7", b: "2", want: "3"},
		{name: "smaller numerator", a: "3", b: "10", want: "0"},
		{name: "zero divisor", a: "500", b: "0", wantErr: ErrDivisionByZero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Divide(MustParse(tt.a), MustParse(tt.b))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestZeroValueBehavesAsZero(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.String())
	assert.True(t, Multiply(a, FromUint64(5)).IsZero())
	_, err := Divide(FromUint64(5), a)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestParseRejectsNonIntegers(t *testing.T) {
	for _, in := range []string{"", " ", "-1", "1.5", "1e18", "0x10", "abc"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidNumericInput, "input %q", in)
	}
}

func TestFromBigRejectsNegative(t *testing.T) {
	_, err := FromBig(big.NewInt(-5))
	assert.ErrorIs(t, err, ErrInvalidNumericInput)
}

func TestBigReturnsCopy(t *testing.T) {
	a := FromUint64(10)
	b := a.Big()
	b.SetInt64(99)
	assert.Equal(t, "10", a.String())
}

func TestJSONEncodesAsString(t *testing.T) {
	type wrapper struct {
		Price Amount `json:"price"`
	}
	data, err := json.Marshal(wrapper{Price: MustParse("123456789012345678901234567890")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"123456789012345678901234567890"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Price.Equal(MustParse("123456789012345678901234567890")))

	err = json.Unmarshal([]byte(`{"price":"-4"}`), &out)
	assert.True(t, errors.Is(err, ErrInvalidNumericInput))
}
