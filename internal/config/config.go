// Package config loads the didreg deployment file.
//
// The file is CUE. It is unified with the embedded #Config schema, which
// supplies defaults and rejects unknown fields, and then decoded into Config.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/lifecycle"
	"github.com/roach88/didreg/internal/record"
)

//go:embed schema.cue
var schemaSource string

// Config is a decoded deployment file.
type Config struct {
	Ledger  LedgerConfig  `json:"ledger"`
	Project ProjectConfig `json:"project"`
	Events  EventsConfig  `json:"events"`
	Log     LogConfig     `json:"log"`
}

type LedgerConfig struct {
	Path      string `json:"path"`
	ProgramID string `json:"program_id"`
}

type ProjectConfig struct {
	Authority        string   `json:"authority"`
	FeeRecipient     string   `json:"fee_recipient"`
	Operators        []string `json:"operators"`
	MintFee          uint64   `json:"mint_fee"`
	BaseURI          string   `json:"base_uri"`
	AllowDirectIssue bool     `json:"allow_direct_issue"`
}

type EventsConfig struct {
	AMQPURL  string `json:"amqp_url"`
	Exchange string `json:"exchange"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Load reads and validates the deployment file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Default returns the configuration of an empty deployment file.
func Default() *Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Parse validates data, named filename in error positions, against the schema.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	v := def.Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}
	return &cfg, nil
}

// validate checks what the schema cannot express: key encodings and lengths.
func (c *Config) validate() error {
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if _, err := optionalKey("project.authority", c.Project.Authority); err != nil {
		return err
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// ProgramID returns ledger.program_id, or the zero key when unset.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	return optionalKey("ledger.program_id", c.Ledger.ProgramID)
}

// Authority returns project.authority, or the zero key when unset.
func (c *Config) Authority() (solana.PublicKey, error) {
	return optionalKey("project.authority", c.Project.Authority)
}

// Settings converts the project section into Initialize settings.
func (c *Config) Settings() (lifecycle.Settings, error) {
	var s lifecycle.Settings
	if len(c.Project.BaseURI) > record.MaxBaseURILen {
		return s, fmt.Errorf("project.base_uri: %d bytes exceeds limit of %d", len(c.Project.BaseURI), record.MaxBaseURILen)
	}
	if len(c.Project.Operators) > record.MaxOperators {
		return s, fmt.Errorf("project.operators: %d exceeds limit of %d", len(c.Project.Operators), record.MaxOperators)
	}

	recipient, err := optionalKey("project.fee_recipient", c.Project.FeeRecipient)
	if err != nil {
		return s, err
	}
	for i, op := range c.Project.Operators {
		pk, err := solana.PublicKeyFromBase58(op)
		if err != nil {
			return s, fmt.Errorf("project.operators[%d]: %w", i, err)
		}
		s.Operators = append(s.Operators, pk)
	}
	s.FeeRecipient = recipient
	s.MintFee = c.Project.MintFee
	s.BaseURI = c.Project.BaseURI
	s.AllowDirectIssue = c.Project.AllowDirectIssue
	return s, nil
}

// LogLevel maps log.level onto slog.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func optionalKey(field, s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", field, err)
	}
	return pk, nil
}
