package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/filepay-go/chain"
	"github.com/bitfsorg/filepay-go/config"
	"github.com/bitfsorg/filepay-go/funding"
	"github.com/bitfsorg/filepay-go/history"
	"github.com/bitfsorg/filepay-go/httpapi"
	"github.com/bitfsorg/filepay-go/ledger"
	"github.com/bitfsorg/filepay-go/metrics"
	"github.com/bitfsorg/filepay-go/service"
	"github.com/bitfsorg/filepay-go/storage"
)

const (
	shutdownTimeout = 15 * time.Second
	historyResync   = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer l.Close()

	m := metrics.New()
	opts := []service.Option{service.WithMetrics(m)}

	store, err := openStorage(ctx, cfg.ObjectsPath(), cfg.Storage)
	if err != nil {
		return err
	}
	opts = append(opts, service.WithStorage(store))

	if cfg.Funding.PayTo != "" {
		book, err := openFunding(l, cfg)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithFunding(book))
	}

	svc, err := service.New(l, serviceConfig(cfg), opts...)
	if err != nil {
		return err
	}

	fwd, closeHistory, err := openHistory(ctx, l, cfg.History)
	if err != nil {
		return err
	}
	defer closeHistory()
	historyDone := make(chan struct{})
	go func() {
		defer close(historyDone)
		if err := fwd.Run(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("history forwarder stopped", "err", err)
		}
	}()

	go fwd.KeepUp(ctx, l, historyResync)
	go watchConfig(ctx, resolveConfigPath(), cfg, svc)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.New(svc, m.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.ListenAddr, "network", cfg.Network, "data_dir", cfg.DataDir)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("http shutdown", "err", err)
		}
	}

	// Drain pending history batches before the ledger closes.
	_ = fwd.Close()
	<-historyDone
	return nil
}

func serviceConfig(cfg config.Config) service.Config {
	return service.Config{
		Operators:     cfg.Ledger.Operators,
		Provider:      cfg.Ledger.Provider,
		RatePerByte:   cfg.Ledger.RatePerByte,
		RefundWindow:  cfg.Ledger.RefundWindow,
		TokenLifetime: cfg.Ledger.TokenLifetime,
		InvoiceTTL:    cfg.Ledger.InvoiceTTL,
		PutRetries:    cfg.Storage.PutRetries,
	}
}

// openStorage builds the primary backend and puts any configured IPFS
// gateways behind it as read fallbacks.
func openStorage(ctx context.Context, objectsDir string, sc config.StorageConfig) (storage.Transfer, error) {
	var primary storage.Transfer
	switch sc.Backend {
	case "s3":
		client, err := storage.NewS3Client(ctx, sc.S3)
		if err != nil {
			return nil, err
		}
		s3s, err := storage.NewS3Store(client, sc.S3.Bucket, sc.S3.Prefix)
		if err != nil {
			return nil, err
		}
		primary = s3s
	default:
		scheme, err := storage.ParseCompression(sc.Compression)
		if err != nil {
			return nil, err
		}
		fs, err := storage.NewFileStore(objectsDir, storage.WithCompression(scheme))
		if err != nil {
			return nil, err
		}
		primary = fs
	}
	if len(sc.Gateways) == 0 {
		return primary, nil
	}
	remotes := make([]storage.Fetcher, 0, len(sc.Gateways))
	for _, g := range sc.Gateways {
		remotes = append(remotes, storage.NewGateway(g))
	}
	return storage.NewResolver(primary, remotes...)
}

// openFunding creates the funding book. Funding needs a node for the
// network; without one the daemon refuses to start rather than credit
// unconfirmed transactions.
func openFunding(l *ledger.Log, cfg config.Config) (*funding.Book, error) {
	rpc, err := chain.ResolveConfig(cfg.Funding.RPC, environ(), cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("funding.pay_to is set: %w: %w", funding.ErrNoNode, err)
	}
	node := chain.NewRPCClient(*rpc)
	return funding.NewBook(l, cfg.Funding.PayTo,
		funding.WithNode(node, cfg.Funding.MinConfirmations, cfg.Funding.Broadcast))
}

// openHistory connects the Postgres history when configured, replays what
// it missed and subscribes the forwarder to ledger commits.
func openHistory(ctx context.Context, l *ledger.Log, hc config.HistoryConfig) (*history.Forwarder, func(), error) {
	if hc.DSN == "" {
		fwd := history.NewForwarder(history.Nop{}, 0)
		return fwd, func() {}, nil
	}
	db, err := history.Open(ctx, hc.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := history.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	fwd := history.NewForwarder(history.NewStore(db), 0)
	if _, err := fwd.Catchup(ctx, l); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	l.OnCommit(fwd.Hook)
	return fwd, func() { _ = db.Close() }, nil
}

// watchConfig applies live rate changes. Other settings need a restart.
func watchConfig(ctx context.Context, path string, cfg config.Config, svc *service.Service) {
	current := cfg.Ledger.RatePerByte
	operator := cfg.Ledger.Operators[0]
	err := config.Watch(ctx, path, func(next config.Config) {
		if next.Ledger.RatePerByte == current {
			return
		}
		if err := svc.SetRate(operator, next.Ledger.RatePerByte); err != nil {
			log.Warnw("apply rate change", "rate", next.Ledger.RatePerByte, "err", err)
			return
		}
		log.Infow("rate updated", "from", current, "to", next.Ledger.RatePerByte)
		current = next.Ledger.RatePerByte
	})
	if err != nil {
		log.Warnw("config watch disabled", "path", path, "err", err)
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
