package modem

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"i4.energy/across/nbctl/at"
)

// TestTransport is an in-memory Transport that plays a modem. Every command
// written to it is answered from a table of canned replies, so a Modem can
// be exercised end to end without hardware.
//
// Reads block until data is available, like a real serial port would, which
// keeps the Loop's reader goroutine parked between exchanges.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	pending  []byte
	closed   bool
	echo     bool
	delay    time.Duration
	replies  map[string]string
	written  []string
}

// NewTestTransport returns a transport that already answers the
// initialization sequence with a ready SIM. Unknown commands get ERROR.
func NewTestTransport() *TestTransport {
	t := &TestTransport{
		readChan: make(chan []byte, 64),
		echo:     true,
		replies:  map[string]string{},
	}
	t.Reply(at.CmdAt, at.OK).
		Reply(at.CmdVerboseErrors, at.OK).
		Reply(at.CmdSimStatus, "+CPIN: READY\r\nOK")
	return t
}

// Reply registers the raw reply for cmd. Lines are separated by CRLF and the
// trailing CRLF is added. An empty reply makes the modem stay silent.
func (t *TestTransport) Reply(cmd, reply string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = reply
	return t
}

// Delay makes the modem answer d after each command instead of while the
// command is being written, the way a real modem takes its time.
func (t *TestTransport) Delay(d time.Duration) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
	return t
}

// Written returns the commands received so far, without the trailing CR.
func (t *TestTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	cmd := strings.TrimSpace(string(p))
	t.written = append(t.written, cmd)

	var out strings.Builder
	if t.echo {
		out.WriteString(cmd + at.CR)
	}

	switch cmd {
	case at.CmdEchoOn, at.CmdEchoOff:
		t.echo = cmd == at.CmdEchoOn
		out.WriteString(at.CRLF + at.OK + at.CRLF)
	default:
		reply, ok := t.replies[cmd]
		if !ok {
			reply = at.ERROR
		}
		if reply != "" {
			out.WriteString(at.CRLF + reply + at.CRLF)
		}
	}

	switch {
	case out.Len() == 0:
	case t.delay > 0:
		data := out.String()
		time.AfterFunc(t.delay, func() { t.SendData(data) })
	default:
		t.readChan <- []byte(out.String())
	}
	return len(p), nil
}

// Read is meant for a single reader goroutine.
func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.pending) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.pending = data
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates the modem emitting output on its own, such as a URC.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(_ context.Context) (Transport, error) {
	return d.Transport, nil
}
