package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	v := NewValidator()

	v.Check(true, "name", "must be provided")
	assert.True(t, v.Valid())

	v.Check(false, "name", "must be provided")
	v.Check(false, "name", "second message is ignored")
	v.Check(false, "email", "must be a valid email address")
	assert.False(t, v.Valid())

	err := v.ValidationError()

	var validationErr ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, map[string]string{"name": "must be provided", "email": "must be a valid email address"}, validationErr.Errors)
}

func TestCheckStringLength(t *testing.T) {
	v := NewValidator()

	testCases := []struct {
		input string
		min   int
		max   int
		want  bool
	}{
		{input: "", min: 1, max: 3, want: false},
		{input: "abc", min: 1, max: 3, want: true},
		{input: "abcd", min: 1, max: 3, want: false},
		{input: "héé", min: 3, max: 3, want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, v.CheckStringLength(tc.input, tc.min, tc.max))
		})
	}
}

func TestIn(t *testing.T) {
	v := NewValidator()

	assert.True(t, v.In("store", "store", "email"))
	assert.False(t, v.In("fax", "store", "email"))
}
