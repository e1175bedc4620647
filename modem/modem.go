// Package modem drives an AT-command modem over a Transport. A single event
// loop owns all transport I/O, so commands from concurrent callers are
// serialized and unsolicited result codes are never lost between exchanges.
package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"i4.energy/across/nbctl/at"
	"i4.energy/across/nbctl/control"
)

// Modem represents a cellular modem that communicates via AT commands.
// It provides thread-safe command execution through a centralized event
// loop that handles all transport I/O.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// scanner tokenizes transport input; shared by init and Loop so that
	// buffered bytes survive the hand-over
	scanner *bufio.Scanner
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	closed      atomic.Bool
	loopRunning atomic.Bool

	// urcChan receives Unsolicited Result Codes from the modem
	urcChan chan string
	// commands queues AT command requests for the Loop to process
	commands chan *commandRequest

	// loopCtx is cancelled by Close to stop a running Loop
	loopCtx    context.Context
	loopCancel context.CancelFunc
}

var _ control.Sender = (*Modem)(nil)

// commandRequest represents an AT command request to be executed by the Loop.
type commandRequest struct {
	// cmd is the AT command string to send to the modem
	cmd string
	// respChan receives the command response from the Loop
	respChan chan commandResponse
	// ctx provides timeout and cancellation control for the command
	ctx context.Context
}

// commandResponse contains the result of an AT command execution.
type commandResponse struct {
	response *at.Response
	err      error
}

// PollConfig defines configuration for polling operations like waiting for SIM readiness.
type PollConfig struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// Timeout is the maximum time to wait for the condition
	Timeout time.Duration
	// MaxRetries is the maximum number of polling attempts
	MaxRetries int
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection, runs the initialization
// sequence and prepares the event loop context.
//
// Returns an error if the transport connection or modem initialization
// fails.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	m := &Modem{
		config:    config,
		logger:    config.logger,
		transport: transport,
		urcChan:   make(chan string, config.urcBuffer),
		// No queue for commands
		commands: make(chan *commandRequest),
	}
	if transport != nil {
		m.scanner = bufio.NewScanner(transport)
		m.scanner.Split(at.Splitter)
	}

	// Prepare context for Loop (but don't start it yet)
	m.loopCtx, m.loopCancel = context.WithCancel(context.WithoutCancel(ctx))

	initCtx, cancel := context.WithTimeout(ctx, config.initTimeout)
	defer cancel()

	if err := m.init(initCtx); err != nil {
		m.loopCancel()
		if m.transport != nil {
			transport.Close()
		}
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	m.logger.Info("Modem initialized", "echo", config.echoOn)
	return m, nil
}

// Loop is the main event loop that handles all transport I/O operations.
// It must be called once after New() and before Send can succeed:
//
//  1. Accepts command requests from Send
//  2. Writes AT commands to the transport
//  3. Reads, classifies and collects response lines into an at.Response
//  4. Dispatches URCs to the URC channel and flags the pending response
//  5. Completes the pending request on a final result code or prompt
//
// The Loop runs until ctx is cancelled, Close is called, or the transport
// reaches EOF. It is the only reader of the transport.
//
// Usage:
//
//	m, err := modem.New(ctx, config)
//	if err != nil { return err }
//	go m.Loop(ctx)
//	resp, err := m.Send(ctx, "AT+NBAND?", 0)
func (m *Modem) Loop(ctx context.Context) error {
	if m.transport == nil {
		return ErrNotInitialized
	}
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.loopRunning.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.loopCtx, cancel)
	defer stop()

	tokens := make(chan string, 10)
	scanErrs := make(chan error, 1)

	go func() {
		defer close(tokens)
		for m.scanner.Scan() {
			token := m.scanner.Text()
			if token == "" {
				continue
			}
			select {
			case tokens <- token:
			case <-ctx.Done():
				return
			}
		}
		if err := m.scanner.Err(); err != nil {
			select {
			case scanErrs <- err:
			case <-ctx.Done():
			}
		}
	}()

	var (
		currentCmd  *commandRequest
		currentResp *at.Response
		// cmdDone is nil while idle so the select never fires on it
		cmdDone <-chan struct{}
	)
	complete := func(r commandResponse) {
		currentCmd.respChan <- r
		currentCmd, currentResp, cmdDone = nil, nil, nil
	}

	for {
		// At most one exchange is in flight: new commands wait on the
		// channel until the current one completes or times out.
		cmds := m.commands
		if currentCmd != nil {
			cmds = nil
		}

		select {
		case <-ctx.Done():
			if currentCmd != nil {
				complete(commandResponse{err: ctx.Err()})
			}
			return ctx.Err()

		case req := <-cmds:
			wire := strings.TrimSpace(req.cmd) + at.CR
			if _, err := m.transport.Write([]byte(wire)); err != nil {
				req.respChan <- commandResponse{err: fmt.Errorf("write command %q: %w", req.cmd, err)}
				continue
			}
			currentCmd, currentResp, cmdDone = req, at.NewResponse(), req.ctx.Done()

		case <-cmdDone:
			m.logger.Debug("Command timed out", "cmd", currentCmd.cmd, "response", currentResp)
			complete(commandResponse{err: fmt.Errorf("command timeout: %w", currentCmd.ctx.Err())})

		case token, ok := <-tokens:
			if !ok {
				// The reader queues its error before closing tokens.
				err := io.EOF
				select {
				case scanErr := <-scanErrs:
					err = fmt.Errorf("scanner error: %w", scanErr)
				default:
				}
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				if currentCmd != nil {
					complete(commandResponse{err: err})
				}
				return err
			}

			switch at.Classify(token) {
			case at.TypeURC:
				m.dispatchURC(token)
				if currentResp != nil {
					currentResp.AddUnsolicited()
				}

			case at.TypeFinal:
				if currentCmd == nil {
					m.logger.Debug("Dropping orphaned final result", "line", token)
					continue
				}
				currentResp.Finish(token)
				complete(commandResponse{response: currentResp})

			case at.TypeData:
				if currentCmd == nil {
					m.logger.Debug("Dropping orphaned line", "line", token)
					continue
				}
				currentResp.AddLine(token)

			case at.TypePrompt:
				if currentCmd != nil {
					currentResp.Finish(token)
					complete(commandResponse{response: currentResp})
				}
			}

		case err := <-scanErrs:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err = fmt.Errorf("scanner error: %w", err)
			if currentCmd != nil {
				complete(commandResponse{err: err})
			}
			return err
		}
	}
}

func (m *Modem) dispatchURC(urc string) {
	select {
	case m.urcChan <- urc:
	default:
		m.logger.Warn("URC channel full, dropping", "urc", urc)
	}
}

// URC returns a read-only channel that receives Unsolicited Result Codes.
// The channel is buffered, but URCs are dropped if it is not consumed fast
// enough.
func (m *Modem) URC() <-chan string {
	return m.urcChan
}

// Close shuts down the modem and releases all resources.
// It stops the event loop and closes the transport connection.
// After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}

	if m.loopCancel != nil {
		m.loopCancel()
	}

	if m.transport != nil {
		return m.transport.Close()
	}

	return nil
}

// Send executes cmd through the Loop and returns the collected response.
// A timeout of zero or less selects the configured AT timeout. An ERROR
// final result is reported through the response, not the error.
func (m *Modem) Send(ctx context.Context, cmd string, timeout time.Duration) (*at.Response, error) {
	if timeout <= 0 {
		timeout = m.config.atTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := m.exec(ctx, cmd)
	if err != nil {
		m.logger.Debug("AT exchange failed", "cmd", cmd, "error", err)
		return nil, err
	}
	m.logger.Debug("AT exchange", "cmd", cmd, "response", resp, "elapsed", time.Since(start))
	return resp, nil
}

// init performs the initial setup sequence for the modem hardware.
// This method is called during New() and must complete successfully
// before the modem can be used.
func (m *Modem) init(ctx context.Context) error {
	// 1. Wake-up / sanity check
	if err := m.expectOkDirect(ctx, at.CmdAt); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	echo := at.CmdEchoOff
	if m.config.echoOn {
		echo = at.CmdEchoOn
	}
	if err := m.expectOkDirect(ctx, echo); err != nil {
		return fmt.Errorf("could not configure echo: %w", err)
	}

	if err := m.expectOkDirect(ctx, at.CmdVerboseErrors); err != nil {
		return fmt.Errorf("could not enable numeric errors: %w", err)
	}

	// 4. Check SIM status
	resp, err := m.execDirect(ctx, at.CmdSimStatus)
	if err != nil {
		return fmt.Errorf("query SIM status: %w", err)
	}
	if !resp.IsOK() {
		return fmt.Errorf("query SIM status: %s", resp.Final())
	}
	status, _ := resp.CommandResponse("+CPIN")

	switch status {
	case at.SimReady:
		// OK

	case at.SimPin:
		if m.config.simPIN == "" {
			return ErrSIMPinRequired
		}
		if err := m.expectOkDirect(ctx, fmt.Sprintf(`AT+CPIN="%s"`, m.config.simPIN)); err != nil {
			return fmt.Errorf("enter SIM PIN: %w", err)
		}

		if err := m.waitForSIMReady(ctx, PollConfig{}); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported SIM state: %q", status)
	}

	return nil
}

// exec hands cmd to the Loop and waits for the response.
func (m *Modem) exec(ctx context.Context, cmd string) (*at.Response, error) {
	if m.closed.Load() {
		return nil, ErrAlreadyClosed
	}
	if m.transport == nil {
		return nil, ErrNotInitialized
	}

	req := &commandRequest{
		cmd:      cmd,
		respChan: make(chan commandResponse, 1), // Buffered to prevent blocking
		ctx:      ctx,
	}

	select {
	case m.commands <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	}

	select {
	case resp := <-req.respChan:
		return resp.response, resp.err
	case <-ctx.Done():
		return nil, fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

// execDirect executes an AT command directly on the transport without
// using the channel mechanism. It is used during modem initialization
// when the Loop is not yet accepting commands.
//
// WARNING: This method should only be used during initialization.
// Use Send() for normal operations.
func (m *Modem) execDirect(ctx context.Context, cmd string) (*at.Response, error) {
	if m.closed.Load() {
		return nil, ErrAlreadyClosed
	}
	if m.transport == nil {
		return nil, ErrNotInitialized
	}

	wire := strings.TrimSpace(cmd) + at.CR
	if _, err := m.transport.Write([]byte(wire)); err != nil {
		return nil, fmt.Errorf("write command %q: %w", cmd, err)
	}

	resp := at.NewResponse()
	for {
		token, err := m.scanDirect(ctx)
		if err != nil {
			return nil, err
		}
		if token == "" {
			continue
		}

		switch at.Classify(token) {
		case at.TypeFinal, at.TypePrompt:
			resp.Finish(token)
			return resp, nil
		case at.TypeData:
			resp.AddLine(token)
		case at.TypeURC:
			m.dispatchURC(token)
			resp.AddUnsolicited()
		}
	}
}

// scanDirect reads the next token, giving up when ctx is done. A read left
// blocked by an expired ctx ends once New closes the transport.
func (m *Modem) scanDirect(ctx context.Context) (string, error) {
	type scanResult struct {
		token string
		err   error
	}
	done := make(chan scanResult, 1)
	go func() {
		if m.scanner.Scan() {
			done <- scanResult{token: m.scanner.Text()}
			return
		}
		err := m.scanner.Err()
		switch {
		case errors.Is(err, bufio.ErrTooLong):
			err = fmt.Errorf("read error: %w", ErrLineTooLong)
		case err != nil:
			err = fmt.Errorf("read error: %w", err)
		default:
			err = io.EOF
		}
		done <- scanResult{err: err}
	}()

	select {
	case r := <-done:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// expectOkDirect executes an AT command and validates that the modem
// answered with OK.
func (m *Modem) expectOkDirect(ctx context.Context, cmd string) error {
	resp, err := m.execDirect(ctx, cmd)
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return fmt.Errorf("unexpected response: %q", resp.Final())
	}
	return nil
}

// waitForSIMReady polls the SIM card status until it reports ready state.
// This is necessary after entering a SIM PIN, as the SIM card needs time
// to authenticate and become operational.
func (m *Modem) waitForSIMReady(ctx context.Context, config PollConfig) error {
	var (
		pollInterval = config.Interval
		timeout      = config.Timeout
		maxRetries   = config.MaxRetries
	)

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = int(timeout / pollInterval)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("SIM not ready: %w", ctx.Err())
		case <-ticker.C:
			retries++
			if retries > maxRetries {
				return fmt.Errorf("SIM not ready after %d retries", maxRetries)
			}
			resp, err := m.execDirect(ctx, at.CmdSimStatus)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return fmt.Errorf("SIM not ready: %w", ctxErr)
				}
				// Fail fast on critical errors
				if errors.Is(err, ErrAlreadyClosed) || errors.Is(err, ErrNotInitialized) {
					return fmt.Errorf("SIM status check failed: %w", err)
				}
				continue
			}
			if status, _ := resp.CommandResponse("+CPIN"); status == at.SimReady {
				return nil
			}
		}
	}
}
