// Package service drives a file through its paid lifecycle:
// register, deposit, store and confirm, release or refund, then authorize and
// retrieve. It wires the file registry, the escrow ledger, the payment
// verifier and the capability issuer onto one ledger, and adds the storage,
// funding, history and metrics collaborators around them.
package service

import (
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/capability"
	"github.com/bitfsorg/filepay-go/escrow"
	"github.com/bitfsorg/filepay-go/funding"
	"github.com/bitfsorg/filepay-go/ledger"
	"github.com/bitfsorg/filepay-go/metrics"
	"github.com/bitfsorg/filepay-go/payment"
	"github.com/bitfsorg/filepay-go/registry"
	"github.com/bitfsorg/filepay-go/storage"
)

var log = logging.Logger("filepay/service")

// DefaultInvoiceTTL is how long a 402 invoice stays valid.
const DefaultInvoiceTTL = 15 * time.Minute

// Config holds the settings New needs to assemble the ledgers.
type Config struct {
	Operators     []string
	Provider      string
	RatePerByte   uint64
	RefundWindow  time.Duration
	TokenLifetime time.Duration
	InvoiceTTL    time.Duration
	// PutRetries bounds storage put retries on transient failures.
	PutRetries uint64
}

// Service is the business logic layer shared by the HTTP API and the CLI.
type Service struct {
	Log       *ledger.Log
	Operators *access.Operators
	Files     *registry.Registry
	Escrow    *escrow.Ledger
	Payments  *payment.Verifier
	Issuer    *capability.Issuer
	Tokens    *capability.Verifier
	Storage   storage.Transfer // nil disables StoreContent and Retrieve
	Funding   *funding.Book    // nil disables Fund
	Metrics   *metrics.Metrics // optional

	invoiceTTL time.Duration
	putRetries uint64
	putBackoff time.Duration
}

// Option configures optional collaborators.
type Option func(*Service)

// WithStorage sets the storage transfer collaborator.
func WithStorage(t storage.Transfer) Option {
	return func(s *Service) { s.Storage = t }
}

// WithFunding enables account funding through b.
func WithFunding(b *funding.Book) Option {
	return func(s *Service) { s.Funding = b }
}

// WithMetrics records ledger events and outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.Metrics = m }
}

// New assembles the ledgers on l.
func New(l *ledger.Log, cfg Config, opts ...Option) (*Service, error) {
	if l == nil {
		return nil, fmt.Errorf("service: ledger is nil")
	}
	ops := access.NewOperators(cfg.Operators...)

	files, err := registry.New(l, ops, cfg.RatePerByte)
	if err != nil {
		return nil, err
	}
	port, err := files.BindPaymentPort()
	if err != nil {
		return nil, err
	}
	esc, err := escrow.New(l, port, ops, escrow.Config{
		Provider:     cfg.Provider,
		RefundWindow: cfg.RefundWindow,
	})
	if err != nil {
		return nil, err
	}
	issuer := capability.NewIssuer(l.Clock(), cfg.TokenLifetime)
	tokens, err := issuer.Verifier()
	if err != nil {
		return nil, err
	}

	s := &Service{
		Log:        l,
		Operators:  ops,
		Files:      files,
		Escrow:     esc,
		Payments:   payment.NewVerifier(files, esc),
		Issuer:     issuer,
		Tokens:     tokens,
		invoiceTTL: cfg.InvoiceTTL,
		putRetries: cfg.PutRetries,
		putBackoff: 200 * time.Millisecond,
	}
	if s.invoiceTTL <= 0 {
		s.invoiceTTL = DefaultInvoiceTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Metrics != nil {
		l.OnCommit(s.Metrics.ObserveEvents)
	}

	log.Infow("service ready",
		"operators", len(ops.List()),
		"provider", esc.Provider(),
		"refund_window", esc.RefundWindow(),
		"token_lifetime", issuer.Lifetime(),
		"storage", s.Storage != nil,
		"funding", s.Funding != nil)
	return s, nil
}
