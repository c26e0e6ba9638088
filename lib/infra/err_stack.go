package infra

import (
	"fmt"
	"io"
	"path"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// References:
// https://github.com/pkg/errors/blob/master/stack.go

type Frame uintptr

func (frame Frame) pc() uintptr {
	return uintptr(frame) - 1
}

func (frame Frame) file() string {
	pc := frame.pc()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknownFile"
	}
	f, _ := fn.FileLine(pc)
	return f
}

func (frame Frame) line() int {
	pc := frame.pc()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return 0
	}
	_, l := fn.FileLine(pc)
	return l
}

func (frame Frame) name() string {
	pc := frame.pc()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknownFunc"
	}
	return fn.Name()
}

// Format characters:
// %s - source file
// %d - source line
// %n - function name
// %v - verbose, equivalent to %s:%d
// %+s - full path, the root path is relative to the compile time GOPATH
// separated by \n\t (<function-name>\n\t<path>)
// %+v - equivalent to %+s:%d
func (frame Frame) Format(s fmt.State, verb rune) {
	switch verb {
	case 's':
		if s.Flag('+') {
			_, _ = io.WriteString(s, frame.name())
			_, _ = io.WriteString(s, "\n\t")
			_, _ = io.WriteString(s, frame.file())
		} else {
			_, _ = io.WriteString(s, path.Base(frame.file()))
		}
	case 'd':
		_, _ = io.WriteString(s, strconv.Itoa(frame.line()))
	case 'n':
		_, _ = io.WriteString(s, funcName(frame.name()))
	case 'v':
		frame.Format(s, 's')
		_, _ = io.WriteString(s, ":")
		frame.Format(s, 'd')
	}
}

// For fmt.Sprintf("%+v", frame).
// If json.Marshaler interface isn't implemented, the MarshalText method is used.
func (frame Frame) MarshalText() ([]byte, error) {
	name := frame.name()
	if name == "unknownFunc" {
		return []byte("unknownFrame"), nil
	}
	builder := strings.Builder{}
	_, _ = builder.WriteString(name)
	_, _ = builder.WriteString(" ")
	_, _ = builder.WriteString(frame.file())
	_, _ = builder.WriteString(":")
	_, _ = builder.WriteString(strconv.Itoa(frame.line()))
	return []byte(builder.String()), nil
}

func (frame Frame) MarshalJSON() ([]byte, error) {
	name := frame.name()
	if name == "unknownFunc" {
		return []byte("{\"frame\":\"unknownFrame\"}"), nil
	}
	builder := strings.Builder{}
	_, _ = builder.WriteString("{")
	_, _ = builder.WriteString("\"func\":\"")
	_, _ = builder.WriteString(name)
	_, _ = builder.WriteString("\",")
	_, _ = builder.WriteString("\"fileAndLine\":\"")
	_, _ = builder.WriteString(frame.file())
	_, _ = builder.WriteString(":")
	_, _ = builder.WriteString(strconv.Itoa(frame.line()))
	_, _ = builder.WriteString("\"}")
	return []byte(builder.String()), nil
}

func funcName(name string) string {
	i := strings.LastIndex(name, "/")
	name = name[i+1:]
	i = strings.Index(name, ".")
	return name[i+1:]
}

// StackTrace is the caller chain captured at the point an error was
// created or wrapped, innermost frame first.
type StackTrace []Frame

func (st StackTrace) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		for _, f := range st {
			_, _ = io.WriteString(s, "\n")
			f.Format(s, verb)
		}
	}
}

func callers(skip int) StackTrace {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := make(StackTrace, n)
	for i := 0; i < n; i++ {
		frames[i] = Frame(pcs[i])
	}
	return frames
}

// ErrorStack is implemented by errors that carry a captured call stack.
// xlog's ErrorStack/ErrorStackContext/ErrorStackf log handlers check for
// it so they can print the stack alongside the error message instead of
// relying on zap's own (much shallower) caller annotation.
type ErrorStack interface {
	error
	StackTrace() StackTrace
	Unwrap() error
	zapcore.ObjectMarshaler
}

type errStack struct {
	msg   string
	cause error
	stack StackTrace
}

func (e *errStack) Error() string {
	if e.msg == "" {
		return e.cause.Error()
	}
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *errStack) Unwrap() error          { return e.cause }
func (e *errStack) StackTrace() StackTrace { return e.stack }

// MarshalLogObject implements zapcore.ObjectMarshaler so ErrorStack values
// can be logged directly (e.g. via zap.Inline) with the error message and
// captured stack trace alongside each other.
func (e *errStack) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("error", e.Error())
	enc.AddString("stack", fmt.Sprintf("%+v", e.stack))
	return nil
}

// NewErrorStack builds a root ErrorStack from a message, capturing the
// current call stack.
func NewErrorStack(msg string) ErrorStack {
	return &errStack{msg: msg, stack: callers(3)}
}

// WrapErrorStack attaches a captured call stack to err. Returns nil if
// err is nil, mirroring errors.Wrap's nil-passthrough behavior.
func WrapErrorStack(err error) ErrorStack {
	if err == nil {
		return nil
	}
	return &errStack{cause: err, stack: callers(3)}
}

// WrapErrorStackWithMessage is WrapErrorStack plus a message prefix.
func WrapErrorStackWithMessage(err error, msg string) ErrorStack {
	if err == nil {
		return nil
	}
	return &errStack{msg: msg, cause: err, stack: callers(3)}
}
