package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/roach88/didreg/internal/address"
	"github.com/roach88/didreg/internal/config"
	"github.com/roach88/didreg/internal/events"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/lifecycle"
)

// env is everything a ledger command needs, built from the global flags.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	ledger    *ledger.Ledger
	publisher events.Publisher
	engine    *lifecycle.Engine
	out       *OutputFormatter
}

// openEnv loads the deployment file, installs the logger, opens the ledger
// and wires the event publisher. The caller must Close the env.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Ledger.Path = opts.Database
	}

	logger := newLogger(cfg, opts, cmd)
	slog.SetDefault(logger)
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	programID, err := cfg.ProgramID()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid program id", err)
	}

	out.VerboseLog("Ledger: %s", cfg.Ledger.Path)
	out.VerboseLog("Program: %s", programID)
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}

	publisher, err := newPublisher(cfg, opts, logger)
	if err != nil {
		l.Close()
		return nil, WrapExitError(ExitCommandError, "failed to connect event broker", err)
	}
	out.VerboseLog("Events: %s", publisherName(publisher))

	return &env{
		cfg:       cfg,
		logger:    logger,
		ledger:    l,
		publisher: publisher,
		engine: lifecycle.New(l,
			lifecycle.WithLogger(logger),
			lifecycle.WithPublisher(publisher),
			lifecycle.WithDeriver(address.NewDeriver(programID)),
		),
		out: out,
	}, nil
}

// Close releases the publisher and the ledger.
func (e *env) Close() {
	if err := e.publisher.Close(); err != nil {
		e.logger.Error("error closing event publisher", "error", err)
	}
	if err := e.ledger.Close(); err != nil {
		e.logger.Error("error closing ledger", "error", err)
	}
}

// newLogger builds the stderr handler. --verbose forces debug level.
func newLogger(cfg *config.Config, opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := cfg.LogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	w := cmd.ErrOrStderr()
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// newPublisher selects AMQP when events.amqp_url is set. Otherwise events
// are logged in verbose mode and dropped in normal mode.
func newPublisher(cfg *config.Config, opts *RootOptions, logger *slog.Logger) (events.Publisher, error) {
	if cfg.Events.AMQPURL != "" {
		logger.Debug("connecting event broker", "exchange", cfg.Events.Exchange)
		return events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
	}
	if opts.Verbose {
		return events.NewLogPublisher(logger), nil
	}
	return events.Nop{}, nil
}

func publisherName(p events.Publisher) string {
	switch p.(type) {
	case *events.AMQPPublisher:
		return "amqp"
	case *events.LogPublisher:
		return "log"
	default:
		return "off"
	}
}

// signer loads the caller's public key from --keypair.
func signer(opts *RootOptions) (solana.PublicKey, error) {
	if opts.Keypair == "" {
		return solana.PublicKey{}, NewExitError(ExitCommandError, "--keypair is required")
	}
	if _, err := os.Stat(opts.Keypair); err != nil {
		return solana.PublicKey{}, WrapExitError(ExitCommandError, "keypair not found", err)
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(opts.Keypair)
	if err != nil {
		return solana.PublicKey{}, WrapExitError(ExitCommandError, "failed to read keypair", err)
	}
	return key.PublicKey(), nil
}

// parseKey parses a base58 public key argument.
func parseKey(field, s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", field, s), err)
	}
	return pk, nil
}

// cmdContext returns the command's context, falling back to Background.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
