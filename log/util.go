package log

import (
	"runtime"
	"strconv"
)

// LazyEval defers building a log argument until the event is actually written.
type LazyEval func() string

func (l LazyEval) String() string {
	return l()
}

// DoLazyEval wraps c so it is only evaluated by Stringer aware sinks.
func DoLazyEval(c func() string) LazyEval {
	return LazyEval(c)
}

// SkipCaller returns file:line of the caller skip frames up the stack.
func SkipCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}
	return file + ":" + strconv.Itoa(line)
}
