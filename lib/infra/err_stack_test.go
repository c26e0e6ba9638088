package infra

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var initPC = caller()

func caller() Frame {
	var PCs [3]uintptr
	n := runtime.Callers(2, PCs[:])
	frames := runtime.CallersFrames(PCs[:n])
	frame, _ := frames.Next()
	return Frame(frame.PC)
}

func TestFrameFormat(t *testing.T) {
	require.Equal(t, "err_stack_test.go", fmt.Sprintf("%s", initPC))
	require.True(t, strings.HasSuffix(fmt.Sprintf("%+s", initPC), "err_stack_test.go"))
	require.Equal(t, "init", fmt.Sprintf("%n", initPC))
	require.True(t, strings.HasSuffix(fmt.Sprintf("%v", initPC), "err_stack_test.go:12"))

	require.Equal(t, "unknownFile", fmt.Sprintf("%s", Frame(0)))
	require.Equal(t, "unknownFunc", fmt.Sprintf("%n", Frame(0)))
	require.Equal(t, "0", fmt.Sprintf("%d", Frame(0)))
}

func TestFrameMarshalText(t *testing.T) {
	b, err := initPC.MarshalText()
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(b), "err_stack_test.go:12"))

	b, err = Frame(0).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "unknownFrame", string(b))
}

func TestFrameMarshalJSON(t *testing.T) {
	b, err := initPC.MarshalJSON()
	require.NoError(t, err)
	require.Contains(t, string(b), "err_stack_test.go:12")

	b, err = Frame(0).MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"frame":"unknownFrame"}`, string(b))
}

func TestNewErrorStack(t *testing.T) {
	es := NewErrorStack("boom")
	require.Equal(t, "boom", es.Error())
	require.NotEmpty(t, es.StackTrace())
	require.NoError(t, es.Unwrap())
}

func TestWrapErrorStack(t *testing.T) {
	require.Nil(t, WrapErrorStack(nil))

	cause := NewErrorStack("cause")
	wrapped := WrapErrorStack(cause)
	require.Equal(t, cause.Error(), wrapped.Error())
	require.Equal(t, cause, wrapped.Unwrap())

	wrappedWithMsg := WrapErrorStackWithMessage(cause, "context")
	require.Equal(t, "context: cause", wrappedWithMsg.Error())
}
