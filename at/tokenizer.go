package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also
// recognizes the data input prompt ("> ").
//
// With echo enabled (ATE1) the command echo arrives as an ordinary line ahead
// of the response. It is classified as data and left for the caller to strip.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match data prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	// 2. Match a line ending. CRLF is the norm, but echoed commands are
	// terminated by a bare CR before the modem emits its own CRLF.
	if i := bytes.IndexByte(data, '\r'); i >= 0 {
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + len(CRLF), data[0:i], nil
			}
			return i + len(CR), data[0:i], nil
		}
		if atEOF {
			return len(data), data[0:i], nil
		}
		// Need one more byte to tell CR from CRLF
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcDownlink),
		strings.HasPrefix(line, UrcSocketMessage),
		strings.HasPrefix(line, UrcSocketClosed),
		strings.HasPrefix(line, UrcReboot),
		line == UrcCall:
		return TypeURC
	default:
		return TypeData
	}
}

// IsSuccess reports whether a final result line signals success.
func IsSuccess(final string) bool {
	return final == OK
}

// ParseField splits a keyed response line of the form "+KEY: value".
//
// Only extended result codes (keys starting with '+') are treated as keyed,
// so free-text lines such as "Revision: 657SP1" stay plain lines. The value
// is returned with surrounding whitespace removed; "+KEY:" alone yields an
// empty value.
func ParseField(line string) (key, value string, ok bool) {
	if !strings.HasPrefix(line, "+") {
		return "", "", false
	}
	key, value, found := strings.Cut(line, ":")
	if !found || len(key) < 2 || strings.ContainsAny(key, " \t,\"") {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}
