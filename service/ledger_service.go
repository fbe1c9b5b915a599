// Package service wraps long running components with a Start/Stop
// lifecycle.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/stanbar/stellot-sub000/api"
	"github.com/stanbar/stellot-sub000/db/metadb"
	"github.com/stanbar/stellot-sub000/ledger/local"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/storage"
)

// LedgerService runs a local ledger on disk and serves it over HTTP.
type LedgerService struct {
	Ledger *local.Ledger
	API    *api.API

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	err     error
	datadir string
	dbType  string
	host    string
	port    int
}

// NewLedgerService creates a LedgerService keeping its database of type
// dbType under datadir.
func NewLedgerService(datadir, dbType, host string, port int, disableLogging bool) *LedgerService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &LedgerService{
		datadir: datadir,
		dbType:  dbType,
		host:    host,
		port:    port,
	}
}

// Start opens the database and begins serving. It returns an error if the
// service is already running or if it fails to start.
func (ls *LedgerService) Start(ctx context.Context) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.cancel != nil {
		return fmt.Errorf("service already running")
	}

	dir := filepath.Join(ls.datadir, "ledger")
	log.Infow("initializing storage", "datadir", dir, "type", ls.dbType)
	database, err := metadb.New(ls.dbType, dir)
	if err != nil {
		return fmt.Errorf("failed to open ledger database: %w", err)
	}
	ls.Ledger = local.New(storage.New(database))
	ls.API, err = api.New(&api.APIConfig{Host: ls.host, Port: ls.port, Ledger: ls.Ledger})
	if err != nil {
		_ = ls.Ledger.Close()
		return fmt.Errorf("failed to start API server: %w", err)
	}

	var apiCtx context.Context
	apiCtx, ls.cancel = context.WithCancel(ctx)
	ls.stopped = make(chan struct{})
	ls.err = nil
	go func(stopped chan struct{}) {
		err := ls.API.Start(apiCtx)
		if cerr := ls.Ledger.Close(); cerr != nil {
			log.Warnw("failed to close ledger", "error", cerr.Error())
		}
		ls.mu.Lock()
		ls.err = err
		ls.mu.Unlock()
		close(stopped)
	}(ls.stopped)
	return nil
}

// Done is closed once the server stopped, either through Stop or because it
// failed.
func (ls *LedgerService) Done() <-chan struct{} {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.stopped
}

// Stop halts the server, closes the ledger and returns the server error, if
// any.
func (ls *LedgerService) Stop() error {
	ls.mu.Lock()
	cancel, stopped := ls.cancel, ls.stopped
	ls.cancel = nil
	ls.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-stopped

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.err
}

// HostPort returns the host and port of the API server.
func (ls *LedgerService) HostPort() (string, int) {
	return ls.host, ls.port
}
