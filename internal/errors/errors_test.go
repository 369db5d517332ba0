package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := DimensionError("X has %d rows, Y has %d", 3, 4)
	wrapped := Wrap(base, "fit failed")

	assert.Equal(t, CodeDimension, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, CodeDimension))
	assert.Contains(t, wrapped.Error(), "fit failed: X has 3 rows, Y has 4")
}

func TestWrapForeignError(t *testing.T) {
	wrapped := Wrapf(fmt.Errorf("boom"), "step %d", 2)

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.False(t, HasCode(wrapped, CodeDimension))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", DegenerateContrast("df_contrast=%d", 0))

	assert.True(t, HasCode(err, CodeDegenerateContrast))
	assert.True(t, IsAppError(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"not fitted", NotFitted("predict"), CodeNotFitted},
		{"insufficient permutations", InsufficientPermutations(10, 10), CodeInsufficientPermutations},
		{"config", ConfigInvalid("bad"), CodeConfigInvalid},
		{"input", InvalidInput("bad"), CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Error())
		})
	}

	assert.Equal(t, CodeNotFitted, GetCode(WithCode(CodeNotFitted, fmt.Errorf("x"))))
}
