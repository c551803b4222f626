//go:build !debug

package debug

import "io"

func Assert(cond bool, msg interface{}) {}

func Fprintf(w io.Writer, format string, a ...interface{}) {}
