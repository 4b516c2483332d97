package pmx

import (
	"fmt"
	"io"
)

// Logger receives decode and encode traces. A nil *Logger silently
// drops everything, so it is always safe to pass around.
type Logger struct {
	io.Writer
}

func (l *Logger) Println(a ...interface{}) {
	if l != nil {
		fmt.Fprintln(l, a...)
	}
}

func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil {
		fmt.Fprintf(l, format+"\n", a...)
	}
}
