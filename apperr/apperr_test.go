package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoriesWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		msg      string
	}{
		{"invalid input", InvalidInputf("elapsed %v", -1), ErrInvalidInput, "invalid input: elapsed -1"},
		{"not found", NotFoundf("provider %q", "x"), ErrNotFound, `not found: provider "x"`},
		{"unsupported", Unsupportedf("no key"), ErrUnsupported, "unsupported: no key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.EqualError(t, tt.err, tt.msg)

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
		})
	}
}

func TestIsUser(t *testing.T) {
	err := Userf("missing --model")
	assert.True(t, IsUser(err))
	assert.True(t, IsUser(fmt.Errorf("wrap: %w", err)))
	assert.False(t, IsUser(errors.New("plain")))
	assert.Equal(t, "missing --model", err.Error())
}
