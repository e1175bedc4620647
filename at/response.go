package at

import (
	"log/slog"
	"slices"
)

// Field is a single "<key>: <value>" line of a modem response.
type Field struct {
	Key   string
	Value string
}

// Response is the decoded result of one command exchange.
//
// Transports build a Response line by line with AddLine and close it with
// Finish. Consumers only read from it: Lines returns a copy, so removing an
// echo never touches the transport's buffer.
type Response struct {
	ok          bool
	error       bool
	unsolicited bool
	final       string

	// lines holds every free-text line in arrival order, including a
	// possible command echo.
	lines []string
	// fields holds keyed lines in arrival order. Entries sharing a key keep
	// their relative order.
	fields []Field
}

// NewResponse returns an empty Response with no status set.
func NewResponse() *Response {
	return &Response{}
}

// AddLine records an intermediate line. Keyed lines ("+KEY: value") are
// stored as fields, everything else as a free-text line.
func (r *Response) AddLine(line string) {
	if key, value, ok := ParseField(line); ok {
		r.fields = append(r.fields, Field{Key: key, Value: value})
		return
	}
	r.lines = append(r.lines, line)
}

// AddUnsolicited marks that an unsolicited result code arrived while the
// exchange was in flight.
func (r *Response) AddUnsolicited() {
	r.unsolicited = true
}

// Finish records the final result line and derives the status flags from it.
// A prompt counts as success since the modem is waiting for input.
func (r *Response) Finish(final string) {
	r.final = final
	switch Classify(final) {
	case TypePrompt:
		r.ok, r.error = true, false
	default:
		r.ok = IsSuccess(final)
		r.error = !r.ok
	}
}

// IsOK reports whether the exchange signaled success.
func (r *Response) IsOK() bool {
	return r.ok && !r.error
}

// HasError reports whether the exchange signaled failure.
func (r *Response) HasError() bool {
	return r.error
}

// IsUnsolicited reports whether an unsolicited result code was seen during
// the exchange.
func (r *Response) IsUnsolicited() bool {
	return r.unsolicited
}

// Final returns the final result line, e.g. "OK" or "+CME ERROR: 50".
func (r *Response) Final() string {
	return r.final
}

// Lines returns a copy of the free-text lines in arrival order.
func (r *Response) Lines() []string {
	return slices.Clone(r.lines)
}

// CommandResponse returns the first value recorded for key.
func (r *Response) CommandResponse(key string) (string, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// CommandResponses returns a copy of all keyed fields in arrival order.
func (r *Response) CommandResponses() []Field {
	return slices.Clone(r.fields)
}

// Values returns every value recorded for key, in arrival order.
func (r *Response) Values(key string) []string {
	var values []string
	for _, f := range r.fields {
		if f.Key == key {
			values = append(values, f.Value)
		}
	}
	return values
}

// LogValue implements slog.LogValuer so a whole exchange can be logged as
// one structured attribute.
func (r *Response) LogValue() slog.Value {
	if r == nil {
		return slog.StringValue("<nil>")
	}
	fields := make([]slog.Attr, 0, len(r.fields))
	for _, f := range r.fields {
		fields = append(fields, slog.String(f.Key, f.Value))
	}
	return slog.GroupValue(
		slog.Bool("ok", r.IsOK()),
		slog.Bool("error", r.error),
		slog.Bool("unsolicited", r.unsolicited),
		slog.String("final", r.final),
		slog.Any("lines", r.lines),
		slog.Attr{Key: "fields", Value: slog.GroupValue(fields...)},
	)
}

var _ slog.LogValuer = (*Response)(nil)
