package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/address"
	"github.com/roach88/didreg/internal/events"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/record"
)

// TxIDGenerator produces the id stamped on each committed transition.
// Implemented by UUIDv7Generator (production) and testutil.SequenceGenerator.
type TxIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 transaction ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Engine executes lifecycle transitions against a ledger.
//
// Thread-safety: all methods are safe for concurrent use. Writes are
// serialised by the ledger's single-writer transactions.
type Engine struct {
	ledger    *ledger.Ledger
	deriver   *address.Deriver
	logger    *slog.Logger
	txIDs     TxIDGenerator
	publisher events.Publisher
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTxIDGenerator sets the transaction id source. Default: UUIDv7Generator.
func WithTxIDGenerator(gen TxIDGenerator) Option {
	return func(e *Engine) {
		e.txIDs = gen
	}
}

// WithPublisher sets where committed transitions are announced.
// Default: events.Nop.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithDeriver sets the address deriver, which fixes the program id all
// record addresses are derived under. Default: address.NewDeriver with the
// default program id.
func WithDeriver(d *address.Deriver) Option {
	return func(e *Engine) {
		e.deriver = d
	}
}

// New creates an Engine over l.
func New(l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger:    l,
		deriver:   address.NewDeriver(solana.PublicKey{}),
		logger:    slog.Default(),
		txIDs:     UUIDv7Generator{},
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deriver returns the engine's address deriver.
func (e *Engine) Deriver() *address.Deriver {
	return e.deriver
}

// Request identifies the caller and the credential a transition targets.
// Admin operations use Wallet or Identifier for their subject.
type Request struct {
	Caller     solana.PublicKey
	Wallet     solana.PublicKey
	Identifier string

	// ProofDigest is written into the token at issue.
	ProofDigest [32]byte
}

func (r Request) target() access.Target {
	return access.Target{Wallet: r.Wallet, Identifier: r.Identifier}
}

// validate checks the fields every lifecycle transition needs.
func (r Request) validate() error {
	if r.Caller.IsZero() {
		return newError(CodeInvalidArgument, r, "caller is required")
	}
	if r.Wallet.IsZero() {
		return newError(CodeInvalidArgument, r, "wallet is required")
	}
	if r.Identifier == "" {
		return newError(CodeInvalidArgument, r, "identifier is required")
	}
	return nil
}

// Result describes a committed transition.
type Result struct {
	TxID    string             `json:"tx_id"`
	Seq     int64              `json:"seq"`
	Action  access.Action      `json:"action"`
	Status  string             `json:"status,omitempty"`
	Created []solana.PublicKey `json:"created"`
	Closed  []solana.PublicKey `json:"closed"`
	Credits []ledger.Credit    `json:"credits"`
}

// Refunded sums the credits paid to recipient.
func (r *Result) Refunded(recipient solana.PublicKey) uint64 {
	var total uint64
	for _, c := range r.Credits {
		if c.Recipient.Equals(recipient) {
			total += c.Lamports
		}
	}
	return total
}

// session is the working state of one transition inside its ledger
// transaction.
type session struct {
	tx      *ledger.Tx
	req     Request
	cfg     *record.ProjectConfig
	addrs   address.Set
	status  string
	created []solana.PublicKey
	closed  []solana.PublicKey
	credits []ledger.Credit
}

func (s *session) create(addr, funder solana.PublicKey, space int, r record.Record) error {
	data, err := record.Encode(r)
	if err != nil {
		return err
	}
	if _, err := s.tx.Create(addr, r.Kind(), funder, space, data); err != nil {
		return err
	}
	s.created = append(s.created, addr)
	return nil
}

func (s *session) write(addr solana.PublicKey, r record.Record) error {
	data, err := record.Encode(r)
	if err != nil {
		return err
	}
	return s.tx.Write(addr, data)
}

func (s *session) close(addr solana.PublicKey) error {
	credit, err := s.tx.Close(addr)
	if err != nil {
		return err
	}
	s.closed = append(s.closed, addr)
	s.credits = append(s.credits, credit)
	return nil
}

// load decodes the record at addr. A missing record is reported as
// ledger.ErrAccountNotFound.
func load[T any, PT interface {
	*T
	record.Record
}](tx *ledger.Tx, addr solana.PublicKey) (*T, error) {
	acct, err := tx.Get(addr)
	if err != nil {
		return nil, err
	}
	return record.Decode[T, PT](acct.Data)
}

// loadOptional is load with a missing record reported as (nil, nil).
func loadOptional[T any, PT interface {
	*T
	record.Record
}](tx *ledger.Tx, addr solana.PublicKey) (*T, error) {
	v, err := load[T, PT](tx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, nil
	}
	return v, err
}

func (e *Engine) loadConfig(tx *ledger.Tx, req Request) (*record.ProjectConfig, error) {
	cfg, err := loadOptional[record.ProjectConfig](tx, e.deriver.Config())
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, newError(CodeNotInitialized, req, "project config not found")
	}
	return cfg, nil
}

// operation is one transition: its access action and the state changes it
// applies once access has been granted.
type operation struct {
	action access.Action
	req    Request
	// initialize skips the config lookup and access check. Only Initialize sets it.
	initialize bool
	apply      func(s *session) error
}

// run executes op in a single ledger transaction, appends its audit row,
// and announces it once committed.
func (e *Engine) run(ctx context.Context, op operation) (*Result, error) {
	txID := e.txIDs.Generate()
	var res *Result

	err := e.ledger.Update(ctx, func(tx *ledger.Tx) error {
		s := &session{tx: tx, req: op.req}
		if op.req.Identifier != "" && !op.req.Wallet.IsZero() {
			s.addrs = e.deriver.All(op.req.Identifier, op.req.Wallet)
		}

		if !op.initialize {
			cfg, err := e.loadConfig(tx, op.req)
			if err != nil {
				return err
			}
			if d := access.Check(cfg, op.req.Caller, op.action, op.req.target()); !d.Allowed {
				return denied(d, op.req)
			}
			s.cfg = cfg
		}

		if err := op.apply(s); err != nil {
			return translate(err, op.req)
		}

		seq, err := tx.AppendAudit(ledger.AuditEntry{
			TxID:       txID,
			Action:     string(op.action),
			Caller:     op.req.Caller,
			Wallet:     op.req.Wallet,
			Identifier: op.req.Identifier,
			Created:    s.created,
			Closed:     s.closed,
			Credits:    s.credits,
		})
		if err != nil {
			return err
		}

		res = &Result{
			TxID:    txID,
			Seq:     seq,
			Action:  op.action,
			Status:  s.status,
			Created: s.created,
			Closed:  s.closed,
			Credits: s.credits,
		}
		return nil
	})
	if err != nil {
		e.logger.DebugContext(ctx, "transition rejected",
			"action", op.action,
			"identifier", op.req.Identifier,
			"wallet", op.req.Wallet.String(),
			"code", CodeOf(err),
			"error", err,
		)
		return nil, err
	}

	e.logger.InfoContext(ctx, "transition committed",
		"tx_id", res.TxID,
		"seq", res.Seq,
		"action", op.action,
		"identifier", op.req.Identifier,
		"wallet", op.req.Wallet.String(),
	)

	ev := events.Event{
		TxID:       res.TxID,
		Seq:        res.Seq,
		Action:     string(op.action),
		Caller:     op.req.Caller,
		Wallet:     op.req.Wallet,
		Identifier: op.req.Identifier,
		Status:     res.Status,
		Created:    res.Created,
		Closed:     res.Closed,
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "event publish failed",
			"tx_id", res.TxID,
			"error", err,
		)
	}
	return res, nil
}

// Execute dispatches a lifecycle action by name.
func (e *Engine) Execute(ctx context.Context, action access.Action, req Request) (*Result, error) {
	switch action {
	case access.ActionAuthorize:
		return e.Authorize(ctx, req)
	case access.ActionIssue:
		return e.Issue(ctx, req)
	case access.ActionBurn:
		return e.Burn(ctx, req)
	case access.ActionRevoke:
		return e.Revoke(ctx, req)
	case access.ActionCleanup:
		return e.Cleanup(ctx, req)
	default:
		return nil, newError(CodeInvalidArgument, req, "unknown lifecycle action %q", action)
	}
}
