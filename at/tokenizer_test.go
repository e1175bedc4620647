package at_test

import (
	"bufio"
	"strings"
	"testing"

	"i4.energy/across/nbctl/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Simple AT command response",
			input:    "AT+CSQ\r\n+CSQ: 15,99\r\nOK\r\n",
			expected: []string{"AT+CSQ", "+CSQ: 15,99", "OK"},
		},
		{
			name:     "AT command with error",
			input:    "AT+CPIN?\r\n+CME ERROR: 10\r\n",
			expected: []string{"AT+CPIN?", "+CME ERROR: 10"},
		},
		{
			name:     "Band query",
			input:    "+NBAND:5,8,20\r\nOK\r\n",
			expected: []string{"+NBAND:5,8,20", "OK"},
		},
		{
			name:     "Echo terminated by bare CR",
			input:    "AT+NBAND?\r\r\n+NBAND:8\r\n\r\nOK\r\n",
			expected: []string{"AT+NBAND?", "", "+NBAND:8", "", "OK"},
		},
		{
			name:     "PDP contexts",
			input:    "+CGDCONT: 0,\"IP\",\"internet\"\r\n+CGDCONT: 1,\"NONIP\",\"iot\"\r\nOK\r\n",
			expected: []string{"+CGDCONT: 0,\"IP\",\"internet\"", "+CGDCONT: 1,\"NONIP\",\"iot\"", "OK"},
		},
		{
			name:     "Multiple line response",
			input:    "ATI\r\nQuectel\r\nBC95\r\nRevision: 657SP1\r\nOK\r\n",
			expected: []string{"ATI", "Quectel", "BC95", "Revision: 657SP1", "OK"},
		},
		{
			name:     "URC mixed with AT response",
			input:    "AT+CSQ\r\n+NSONMI:0,4\r\n+CSQ: 20,99\r\nOK\r\n",
			expected: []string{"AT+CSQ", "+NSONMI:0,4", "+CSQ: 20,99", "OK"},
		},
		{
			name:     "Prompt only",
			input:    "> ",
			expected: []string{"> "},
		},
		{
			name:     "Empty lines handling",
			input:    "\r\n\r\nAT\r\nOK\r\n\r\n",
			expected: []string{"", "", "AT", "OK", ""},
		},
		// EOF scenarios - testing atEOF functionality
		{
			name:     "Incomplete command at EOF",
			input:    "AT+CSQ\r\n+CSQ: 15,99",
			expected: []string{"AT+CSQ", "+CSQ: 15,99"},
		},
		{
			name:     "Command without CRLF at EOF",
			input:    "AT+CPIN",
			expected: []string{"AT+CPIN"},
		},
		{
			name:     "Dangling CR at EOF",
			input:    "AT+NBAND?\r",
			expected: []string{"AT+NBAND?"},
		},
		{
			name:     "Response cut off mid-stream at EOF",
			input:    "AT+CSQ\r\n+CSQ: 15,99\r\nOK\r\n+NNMI: 2,A1B2",
			expected: []string{"AT+CSQ", "+CSQ: 15,99", "OK", "+NNMI: 2,A1B2"},
		},
		{
			name:     "Partial prompt at EOF",
			input:    "AT+NSOSTF=0\r\n>",
			expected: []string{"AT+NSOSTF=0", ">"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("Expected %d tokens, got %d.\nExpected: %q\nGot: %q",
					len(tt.expected), len(tokens), tt.expected, tokens)
			}

			for i, expected := range tt.expected {
				if tokens[i] != expected {
					t.Errorf("Token %d: expected %q, got %q", i, expected, tokens[i])
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected at.ResponseType
	}{
		// Final responses
		{name: "OK response", input: "OK", expected: at.TypeFinal},
		{name: "ERROR response", input: "ERROR", expected: at.TypeFinal},
		{name: "CME Error", input: "+CME ERROR: 30", expected: at.TypeFinal},
		{name: "CMS Error", input: "+CMS ERROR: 500", expected: at.TypeFinal},
		{name: "NO CARRIER", input: "NO CARRIER", expected: at.TypeFinal},

		// URCs
		{name: "Downlink message URC", input: "+NNMI: 2,A1B2", expected: at.TypeURC},
		{name: "Socket data URC", input: "+NSONMI:0,4", expected: at.TypeURC},
		{name: "Socket closed URC", input: "+NSOCLI: 0", expected: at.TypeURC},
		{name: "Reboot banner", input: "REBOOT_CAUSE_APPLICATION_AT", expected: at.TypeURC},
		{name: "Incoming call URC", input: "RING", expected: at.TypeURC},

		// Data responses
		{name: "AT command echo", input: "AT+NBAND?", expected: at.TypeData},
		{name: "Band response", input: "+NBAND:5,8,20", expected: at.TypeData},
		{name: "PDP context", input: "+CGDCONT: 0,\"IP\",\"internet\"", expected: at.TypeData},
		{name: "PIN status", input: "+CPIN: READY", expected: at.TypeData},
		{name: "Bare value", input: "1", expected: at.TypeData},

		// Prompt
		{name: "Data input prompt", input: "> ", expected: at.TypePrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := at.Classify(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for input %q", tt.expected, result, tt.input)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		value string
		ok    bool
	}{
		{name: "With space", input: "+NBAND: 5,8", key: "+NBAND", value: "5,8", ok: true},
		{name: "Without space", input: "+NBAND:5,8", key: "+NBAND", value: "5,8", ok: true},
		{name: "Quoted value", input: "+CGDCONT: 0,\"IP\",\"a:b\"", key: "+CGDCONT", value: "0,\"IP\",\"a:b\"", ok: true},
		{name: "Empty value", input: "+CFUN:", key: "+CFUN", value: "", ok: true},
		{name: "Plain text with colon", input: "Revision: 657SP1", ok: false},
		{name: "Echo", input: "AT+CGDCONT?", ok: false},
		{name: "Bare plus", input: "+: 1", ok: false},
		{name: "No colon", input: "+NBAND", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, ok := at.ParseField(tt.input)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if key != tt.key || value != tt.value {
				t.Errorf("expected (%q, %q), got (%q, %q)", tt.key, tt.value, key, value)
			}
		})
	}
}
