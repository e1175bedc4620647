package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"i4.energy/across/nbctl/at"
	"i4.energy/across/nbctl/control"
	"i4.energy/across/nbctl/modem"
)

// newDialer opens the modem described by the configuration.
var newDialer = func(c *Config) modem.Dialer {
	return modem.SerialDialer{
		PortName: c.SerialPort,
		BaudRate: c.BaudRate,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nbctl",
		Short: "Typed AT-command control of NB-IoT modems",
		Long: `nbctl reads and writes the settings of a cellular modem over its AT
command interface: radio bands, PDP contexts and any string or on/off
setting declared in the configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML configuration file")
	pf.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	pf.Int("baud-rate", modem.DefaultBaudRate, "Baud rate for serial communication")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("sim-pin", "", "SIM card PIN code (if required)")
	pf.Bool("echo", false, "Keep command echo enabled on the modem")
	pf.Duration("at-timeout", 5*time.Second, "Default timeout of a single AT command")

	rootCmd.AddCommand(newPortsCmd())
	rootCmd.AddCommand(newControlsCmd())
	rootCmd.AddCommand(newBandCmd())
	rootCmd.AddCommand(newPDPCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newSetCmd())
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("NBCTL_CONFIG")
	}
	return LoadConfig(WithDefaults(), WithFile(path), WithEnv(), WithFlags(cmd.Flags()))
}

func newLogger(level string, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// session is an initialized modem with its loop running and the
// configured controls bound to it.
type session struct {
	config   *Config
	logger   *slog.Logger
	modem    *modem.Modem
	controls *Controls
	loopDone chan error
}

func openSession(cmd *cobra.Command) (*session, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := newLogger(config.LogLevel, cmd.ErrOrStderr())

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(newDialer(config)).
		WithSimPIN(config.SimPIN).
		WithEchoOn(config.EchoOn).
		WithATTimeout(config.ATTimeout).
		WithInitTimeout(30 * time.Second).
		WithLogger(logger.With("component", "modem")).
		Build()
	if err != nil {
		return nil, fmt.Errorf("modem config: %w", err)
	}

	m, err := modem.New(cmd.Context(), modemConfig)
	if err != nil {
		return nil, err
	}

	s := &session{
		config:   config,
		logger:   logger,
		modem:    m,
		loopDone: make(chan error, 1),
	}
	go func() {
		s.loopDone <- m.Loop(context.Background())
	}()

	s.controls, err = NewControls(m, config.Controls, logger.With("component", "control"))
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if err := s.modem.Close(); err != nil {
		s.logger.Error("Failed to close modem", "error", err)
	}
	if err := <-s.loopDone; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		s.logger.Debug("Modem loop stopped", "error", err)
	}
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(fn func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd, args, s)
	}
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := modem.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newControlsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "controls",
		Short: "List the named controls from the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			controls, err := NewControls(nil, config.Controls, slog.New(slog.DiscardHandler))
			if err != nil {
				return err
			}
			for _, name := range controls.Names() {
				c, _ := controls.Named(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-7s %s\n", name, c.Kind(), access(c))
			}
			return nil
		},
	}
}

func access(c control.Control) string {
	switch {
	case c.Readable() && c.Writeable():
		return "rw"
	case c.Readable():
		return "ro"
	case c.Writeable():
		return "wo"
	}
	return "-"
}

func newBandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "band",
		Short: "Query or select radio bands",
	}

	printBands := func(cmd *cobra.Command, bands []int) {
		fmt.Fprintln(cmd.OutOrStdout(), at.JoinInts(bands))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "supported",
		Short: "List the bands the modem supports",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			bands, err := s.controls.Band.SupportedBands(cmd.Context())
			if err != nil {
				return err
			}
			printBands(cmd, bands)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "active",
		Short: "List the currently selected bands",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			bands, err := s.controls.Band.ActiveBands(cmd.Context())
			if err != nil {
				return err
			}
			printBands(cmd, bands)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <band>...",
		Short: "Select bands",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bands := make([]int, 0, len(args))
			for _, arg := range args {
				for _, field := range strings.Split(arg, ",") {
					b, err := strconv.Atoi(strings.TrimSpace(field))
					if err != nil {
						return fmt.Errorf("%w: band %q", ErrInvalidValue, field)
					}
					bands = append(bands, b)
				}
			}
			return withSession(func(cmd *cobra.Command, args []string, s *session) error {
				return s.controls.Band.Set(cmd.Context(), bands)
			})(cmd, args)
		},
	})

	return cmd
}

func newPDPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdp",
		Short: "Inspect or define PDP contexts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the defined PDP contexts",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			contexts, err := s.controls.PDP.Get(cmd.Context())
			if err != nil {
				return err
			}
			for _, pc := range contexts {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", pc.CID, pc.Type, pc.APN)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <cid> <type> <apn>",
		Short: "Define a PDP context",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: cid %q", ErrInvalidValue, args[0])
			}
			pc := control.PDPContext{CID: cid, Type: args[1], APN: args[2]}
			return withSession(func(cmd *cobra.Command, args []string, s *session) error {
				return s.controls.PDP.Set(cmd.Context(), pc)
			})(cmd, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "has <type> <apn>",
		Short: "Report whether a context with the given type and APN exists",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			if err := s.controls.PDP.Query(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.controls.PDP.HasContextByTypeAndAPN(args[0], args[1]))
			return nil
		}),
	})

	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <control>",
		Short: "Read a named control",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			value, err := s.controls.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if on, ok := value.(bool); ok {
				value = "off"
				if on {
					value = "on"
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		}),
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <control> <value>",
		Short: "Write a named control",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			return s.controls.Set(cmd.Context(), args[0], args[1])
		}),
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the controls over HTTP",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			logger := s.logger

			httpServer := &http.Server{
				Addr: s.config.BindAddress,
				Handler: &Server{
					Logger:   logger.With("component", "server"),
					Controls: s.controls,
				},
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "address", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				return fmt.Errorf("HTTP server failed: %w", err)
			case <-cmd.Context().Done():
				logger.Info("Received shutdown signal")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			logger.Info("Closing HTTP server")
			if err := httpServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown HTTP server: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	return cmd
}
