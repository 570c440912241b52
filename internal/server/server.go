package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/mist/internal/config"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/transport/quic"
	"github.com/zeusync/mist/internal/transport/websocket"
)

// Option configures a Server.
type Option func(*Server)

func WithLogger(l log.Log) Option {
	return func(s *Server) { s.logger = log.OrNop(l) }
}

// WithMetricsHandler exposes g at path.
func WithMetricsHandler(path string, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.gatherer = g
	}
}

// WithQUICTLS sets the TLS configuration of the QUIC listener. Without it a
// self-signed certificate is generated.
func WithQUICTLS(c *tls.Config) Option {
	return func(s *Server) { s.quicTLS = c }
}

// Server accepts websocket connections over HTTP and, when QUICAddr is set,
// QUIC connections, and hands each one to the Handler.
type Server struct {
	cfg       config.ServerConfig
	handler   *Handler
	wsOptions websocket.Options
	upgrader  *websocket.Upgrader
	logger    log.Log

	gatherer    prometheus.Gatherer
	metricsPath string
	quicTLS     *tls.Config
	store       entity.Store

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	httpSrv  *http.Server
	httpAddr net.Addr
	quicLn   *quic.Listener
	group    *errgroup.Group
	conns    sync.WaitGroup
}

func NewServer(cfg config.ServerConfig, handler *Handler, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  log.NewNop(),
		wsOptions: websocket.Options{
			ReadLimit:    cfg.ReadLimit,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
	s.upgrader = websocket.NewUpgrader(s.wsOptions)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "server"))
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start binds the listeners and serves in the background. It returns once
// every listener is bound.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return pkgerrors.Wrapf(ErrListenerFailed, "http %s: %v", s.cfg.ListenAddr, err)
	}

	var quicLn *quic.Listener
	if s.cfg.QUICAddr != "" {
		if quicLn, err = s.listenQUIC(); err != nil {
			_ = ln.Close()
			atomic.StoreInt32(&s.running, 0)
			return err
		}
	}

	httpSrv := &http.Server{
		Handler:     s.Router(),
		BaseContext: func(net.Listener) context.Context { return s.baseCtx },
	}
	group, gctx := errgroup.WithContext(s.baseCtx)

	s.mu.Lock()
	s.httpSrv = httpSrv
	s.httpAddr = ln.Addr()
	s.quicLn = quicLn
	s.group = group
	s.mu.Unlock()

	group.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return pkgerrors.Wrap(err, "http server")
		}
		return nil
	})
	if quicLn != nil {
		group.Go(func() error { return s.acceptQUIC(gctx, quicLn) })
	}

	fields := []log.Field{log.String("listen_addr", ln.Addr().String()), log.String("ws_path", s.cfg.WSPath)}
	if quicLn != nil {
		fields = append(fields, log.String("quic_addr", quicLn.Addr()))
	}
	s.logger.Info("server started", fields...)
	return nil
}

func (s *Server) listenQUIC() (*quic.Listener, error) {
	tlsConf := s.quicTLS
	if tlsConf == nil {
		var err error
		if tlsConf, err = quic.SelfSignedTLS(); err != nil {
			return nil, err
		}
	}
	ln, err := quic.Listen(s.cfg.QUICAddr, tlsConf, int(s.cfg.ReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrListenerFailed, "quic %s: %v", s.cfg.QUICAddr, err)
	}
	return ln, nil
}

func (s *Server) acceptQUIC(ctx context.Context, ln *quic.Listener) error {
	for {
		qc, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || atomic.LoadInt32(&s.closed) == 1 {
				return nil
			}
			return err
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			conn, err := ln.Open(ctx, qc)
			if err != nil {
				s.logger.Debug("quic stream not opened", log.Error(err))
				return
			}
			if err = s.handler.Serve(ctx, conn); err != nil {
				s.logger.Debug("quic connection ended", log.Error(err))
			}
		}()
	}
}

// Addr returns the bound HTTP address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// QUICAddr returns the bound QUIC address, or "" when QUIC is disabled.
func (s *Server) QUICAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quicLn == nil {
		return ""
	}
	return s.quicLn.Addr()
}

// Wait blocks until the server stops and returns the first serve error.
func (s *Server) Wait() error {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return ErrServerNotRunning
	}
	return group.Wait()
}

// Stop closes the listeners, then every open connection, and waits for the
// serving goroutines within the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return ErrServerClosed
	}
	if atomic.LoadInt32(&s.running) == 0 {
		s.cancel()
		return nil
	}

	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	s.mu.Lock()
	httpSrv, quicLn, group := s.httpSrv, s.quicLn, s.group
	s.mu.Unlock()

	// Hijacked websocket connections are not tracked by Shutdown; cancelling
	// the base context closes them.
	s.cancel()
	err := httpSrv.Shutdown(ctx)
	if quicLn != nil {
		err = errors.Join(err, quicLn.Close())
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}

	err = errors.Join(err, group.Wait())
	atomic.StoreInt32(&s.running, 0)
	s.logger.Info("server stopped")
	return err
}

func (s *Server) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1 && atomic.LoadInt32(&s.closed) == 0
}
