package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			"msg only",
			&Error{Code: EInvalid, Msg: "id is required"},
			"id is required",
		},
		{
			"wrapped error only",
			&Error{Code: EInternal, Err: fmt.Errorf("disk full")},
			"disk full",
		},
		{
			"msg and wrapped error",
			&Error{Code: EInternal, Msg: "query failed", Err: fmt.Errorf("disk full")},
			"query failed: disk full",
		},
		{
			"code only",
			&Error{Code: ENotFound},
			"<not found>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", ErrorCode(nil))
	require.Equal(t, EInternal, ErrorCode(fmt.Errorf("plain")))
	require.Equal(t, ENotFound, ErrorCode(&Error{Code: ENotFound}))

	// the code of the innermost coded error wins when the outer error has none
	wrapped := &Error{Op: "sqlrepo.GetOne", Err: &Error{Code: EInvalid}}
	require.Equal(t, EInvalid, ErrorCode(wrapped))

	// a plain wrapper around a coded error is still coded
	require.Equal(t, EConflict, ErrorCode(fmt.Errorf("outer: %w", &Error{Code: EConflict})))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", ErrorMessage(nil))
	require.Equal(t, "An internal error has occurred.", ErrorMessage(fmt.Errorf("secret detail")))
	require.Equal(t, "stream not found", ErrorMessage(&Error{Code: ENotFound, Msg: "stream not found"}))
	require.Equal(t, "inner message", ErrorMessage(&Error{Err: &Error{Msg: "inner message"}}))
}

func TestErrorOp(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", ErrorOp(fmt.Errorf("plain")))
	require.Equal(t, "sqlrepo.GetOne", ErrorOp(&Error{Op: "sqlrepo.GetOne"}))
	require.Equal(t, "sqlite.open", ErrorOp(&Error{Err: &Error{Op: "sqlite.open"}}))
}
