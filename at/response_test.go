package at_test

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"i4.energy/across/nbctl/at"
)

func buildResponse(final string, lines ...string) *at.Response {
	r := at.NewResponse()
	for _, l := range lines {
		r.AddLine(l)
	}
	r.Finish(final)
	return r
}

func TestResponseStatus(t *testing.T) {
	tests := []struct {
		name     string
		final    string
		ok       bool
		hasError bool
	}{
		{name: "OK", final: "OK", ok: true},
		{name: "ERROR", final: "ERROR", hasError: true},
		{name: "CME error", final: "+CME ERROR: 50", hasError: true},
		{name: "Prompt", final: "> ", ok: true},
		{name: "No carrier", final: "NO CARRIER", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := buildResponse(tt.final)
			if r.IsOK() != tt.ok {
				t.Errorf("expected IsOK()=%v, got %v", tt.ok, r.IsOK())
			}
			if r.HasError() != tt.hasError {
				t.Errorf("expected HasError()=%v, got %v", tt.hasError, r.HasError())
			}
			if r.Final() != tt.final {
				t.Errorf("expected Final()=%q, got %q", tt.final, r.Final())
			}
		})
	}

	t.Run("Unfinished response is neither OK nor error", func(t *testing.T) {
		r := at.NewResponse()
		if r.IsOK() || r.HasError() {
			t.Errorf("expected no status, got ok=%v error=%v", r.IsOK(), r.HasError())
		}
	})
}

func TestResponseLinesAndFields(t *testing.T) {
	r := buildResponse("OK",
		"AT+CGDCONT?",
		"+CGDCONT: 0,\"IP\",\"internet\"",
		"+CGDCONT: 1,\"NONIP\",\"iot\"",
		"+CSCON: 0",
	)

	t.Run("Free text lines keep arrival order", func(t *testing.T) {
		if got := r.Lines(); !slices.Equal(got, []string{"AT+CGDCONT?"}) {
			t.Errorf("unexpected lines: %q", got)
		}
	})

	t.Run("Lines returns a copy", func(t *testing.T) {
		lines := r.Lines()
		lines[0] = "changed"
		if r.Lines()[0] != "AT+CGDCONT?" {
			t.Error("mutating the returned lines changed the response")
		}
	})

	t.Run("First value wins for CommandResponse", func(t *testing.T) {
		v, ok := r.CommandResponse("+CGDCONT")
		if !ok {
			t.Fatal("expected +CGDCONT to be found")
		}
		if v != "0,\"IP\",\"internet\"" {
			t.Errorf("unexpected value: %q", v)
		}
	})

	t.Run("Absent key is not found", func(t *testing.T) {
		if _, ok := r.CommandResponse("+NBAND"); ok {
			t.Error("expected +NBAND to be absent")
		}
	})

	t.Run("Values preserves same-key order", func(t *testing.T) {
		want := []string{"0,\"IP\",\"internet\"", "1,\"NONIP\",\"iot\""}
		if got := r.Values("+CGDCONT"); !slices.Equal(got, want) {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("CommandResponses lists every field", func(t *testing.T) {
		fields := r.CommandResponses()
		if len(fields) != 3 {
			t.Fatalf("expected 3 fields, got %d", len(fields))
		}
		if fields[2] != (at.Field{Key: "+CSCON", Value: "0"}) {
			t.Errorf("unexpected last field: %+v", fields[2])
		}
	})
}

func TestResponseUnsolicited(t *testing.T) {
	r := at.NewResponse()
	if r.IsUnsolicited() {
		t.Fatal("fresh response should not be unsolicited")
	}
	r.AddUnsolicited()
	r.Finish(at.OK)
	if !r.IsUnsolicited() {
		t.Error("expected unsolicited flag to be set")
	}
	if !r.IsOK() {
		t.Error("unsolicited flag must not affect status")
	}
}

func TestResponseLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("exchange", "response", buildResponse("OK", "AT+NBAND?", "+NBAND: 8"))

	out := buf.String()
	for _, want := range []string{"response.ok=true", "response.final=OK", "response.fields.+NBAND=8"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got: %s", want, out)
		}
	}
}
