package supervisor

import (
	"fmt"
	"io"
)

// Reporter prints one human-readable line per supervisor step
type Reporter interface {
	Stepf(format string, args ...interface{})
	Failuref(format string, args ...interface{})
}

const FailureMarker = "ERROR: "

type writerReporter struct {
	w io.Writer
}

// NewReporter writes step lines to w; failures carry FailureMarker
func NewReporter(w io.Writer) Reporter {
	return &writerReporter{w: w}
}

func (r *writerReporter) Stepf(format string, args ...interface{}) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *writerReporter) Failuref(format string, args ...interface{}) {
	fmt.Fprintf(r.w, FailureMarker+format+"\n", args...)
}
