package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_SetCodeAndMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"not found", NotFound("community not found"), ErrCodeNotFound},
		{"conflict", Conflict("slug already taken"), ErrCodeConflict},
		{"validation", Validation("slug is required"), ErrCodeValidation},
		{"unauthorized", Unauthorized("authentication required"), ErrCodeUnauthorized},
		{"forbidden", Forbidden("operator privilege required"), ErrCodeForbidden},
		{"internal", Internal("resolution failed"), ErrCodeInternal},
		{"timeout", Timeout("membership warm-up timed out"), ErrCodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
			assert.Nil(t, tt.err.Cause)
		})
	}
}

func TestConstructors_Formatted(t *testing.T) {
	nf := NotFoundf("community %q not found", "acme")
	assert.Equal(t, ErrCodeNotFound, nf.Code)
	assert.Equal(t, `community "acme" not found`, nf.Message)

	v := Validationf("unknown role %q", "superuser")
	assert.Equal(t, ErrCodeValidation, v.Code)
	assert.Equal(t, `unknown role "superuser"`, v.Message)
}

func TestAppError_Error(t *testing.T) {
	plain := NotFound("membership not found")
	assert.Equal(t, "membership not found", plain.Error())

	cause := stderrors.New("connection refused")
	wrapped := Wrap(cause, ErrCodeInternal, "load directory")
	assert.Equal(t, "load directory: connection refused", wrapped.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("unique constraint violated")
	err := Wrap(cause, ErrCodeConflict, "upsert membership")

	require.NotNil(t, err)
	assert.Equal(t, ErrCodeConflict, err.Code)
	assert.True(t, stderrors.Is(err, cause), "errors.Is must see through Unwrap")
}

func TestWrap_NilCauseIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "never happened"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "never %s", "happened"))
}

func TestWrapf_FormatsMessage(t *testing.T) {
	cause := stderrors.New("no rows")
	err := Wrapf(cause, ErrCodeNotFound, "tenant %q", "acme")

	require.NotNil(t, err)
	assert.Equal(t, `tenant "acme"`, err.Message)
	assert.True(t, stderrors.Is(err, cause))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred func(error) bool
		hit  error
	}{
		{"not found", IsNotFound, NotFound("x")},
		{"conflict", IsConflict, Conflict("x")},
		{"validation", IsValidation, Validation("x")},
		{"unauthorized", IsUnauthorized, Unauthorized("x")},
		{"forbidden", IsForbidden, Forbidden("x")},
		{"timeout", IsTimeout, Timeout("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.hit))
			assert.True(t, tt.pred(fmt.Errorf("outer: %w", tt.hit)),
				"predicate must see through stdlib wrapping")
			assert.False(t, tt.pred(Internal("other code")))
			assert.False(t, tt.pred(stderrors.New("plain error")))
			assert.False(t, tt.pred(nil))
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeForbidden, GetCode(Forbidden("nope")))
	assert.Equal(t, ErrCodeTimeout, GetCode(fmt.Errorf("resolve: %w", Timeout("slow"))))
	assert.Equal(t, ErrorCode(""), GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetCode(nil))
}
