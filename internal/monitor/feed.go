// Package monitor serves the read-only DTLS feed of node log records.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/dtls/v3"
	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/internal/config"
	mdtls "github.com/wgsim/controller/internal/dtls"
	"github.com/wgsim/controller/pkg/tracer"
)

// HandshakeTimeout bounds the DTLS handshake of a new subscriber.
const HandshakeTimeout = 30 * time.Second

var ErrAlreadyRunning = errors.New("monitor feed is already running")

// Feed accepts DTLS subscribers and forwards every traced record to them.
type Feed struct {
	cfg        config.Monitor
	dtlsConfig *dtls.Config
	records    <-chan tracer.Record

	registry *Registry
	running  atomic.Bool

	mu sync.Mutex
	ln net.Listener
}

// New builds a feed for the given monitor section. In files mode with
// env=dev missing certificates are generated first.
func New(m config.Monitor, records <-chan tracer.Record) (*Feed, error) {
	if m.DTLS.Certs.Mode == "files" && m.Env == "dev" {
		if err := config.GenerateCertificates(&m.DTLS); err != nil {
			return nil, fmt.Errorf("generate certificates: %w", err)
		}
	}
	dc, err := mdtls.ServerConfig(&m)
	if err != nil {
		return nil, err
	}
	return &Feed{
		cfg:        m,
		dtlsConfig: dc,
		records:    records,
		registry:   NewRegistry(DefaultWriteTimeout),
	}, nil
}

// Subscribers returns the number of connected subscribers.
func (f *Feed) Subscribers() int {
	return f.registry.Len()
}

// Addr returns the bound listener address, or nil before Run.
func (f *Feed) Addr() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ln == nil {
		return nil
	}
	return f.ln.Addr()
}

// Run listens on the configured address until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer f.running.Store(false)

	addr, err := net.ResolveUDPAddr("udp", f.cfg.Addr())
	if err != nil {
		return fmt.Errorf("resolve %s: %w", f.cfg.Addr(), err)
	}
	ln, err := dtls.Listen("udp", addr, f.dtlsConfig)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.ln = ln
	f.mu.Unlock()
	log.WithField("caller", "monitor").Infof("Monitor feed listening on %s", ln.Addr())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.acceptLoop(ctx, ln)
	}()
	go func() {
		defer wg.Done()
		f.broadcastLoop(ctx)
	}()

	<-ctx.Done()
	_ = ln.Close()
	wg.Wait()
	f.registry.CloseAll()
	log.WithField("caller", "monitor").Info("Monitor feed stopped")
	return nil
}

func (f *Feed) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithField("caller", "monitor").WithError(err).Error("Accept Error")
			continue
		}
		go f.handshake(ctx, conn)
	}
}

func (f *Feed) handshake(ctx context.Context, conn net.Conn) {
	dtlsConn, ok := conn.(*dtls.Conn)
	if !ok {
		log.WithField("caller", "monitor").Error("Accept Error: Connection is not a DTLS connection")
		_ = conn.Close()
		return
	}
	hctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()
	if err := dtlsConn.HandshakeContext(hctx); err != nil {
		log.WithField("caller", "monitor").WithError(err).Warnf("Handshake with %s failed", conn.RemoteAddr())
		_ = conn.Close()
		return
	}
	f.registry.Register(conn)
}

// broadcastLoop drains the tracer channel even without subscribers so the
// buffer never fills up with stale records.
func (f *Feed) broadcastLoop(ctx context.Context) {
	records := f.records
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			f.registry.Broadcast(rec)
		}
	}
}
