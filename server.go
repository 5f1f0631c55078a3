package uasd

import (
	"context"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sipterm/uasd/calllog"
	"github.com/sipterm/uasd/dispatcher"
	"github.com/sipterm/uasd/metrics"
	"github.com/sipterm/uasd/queue"
)

// Server owns the UDP listener, the worker pool, and the admin HTTP
// listener. It is the Go-native replacement for the teacher's own
// Server/UserAgent pairing (server.go, ua.go), generalized from SIP
// client/server session management to this module's dispatcher-driven
// worker pool.
type Server struct {
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	cdr     *calllog.Logger

	conn    net.PacketConn
	workers []*Worker
	disp    *dispatcher.Dispatcher
	admin   *http.Server
}

// NewServer binds the UDP socket and builds the worker pool, but does
// not yet start serving; call Serve for that. Binding here (rather
// than in Serve) lets the caller observe a bind failure before
// committing to run, matching spec.md §6's "process exits non-zero on
// any setup failure" exit-code contract.
func NewServer(cfg Config, log zerolog.Logger, m *metrics.Metrics, cdr *calllog.Logger) (*Server, error) {
	conn, err := net.ListenPacket("udp4", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	workers := make([]*Worker, cfg.WorkerCount)
	for i := range workers {
		workers[i] = NewWorker(i, cfg.QueueCapacity, conn, log, m, cdr)
	}

	queues := make([]*queue.Queue, cfg.WorkerCount)
	for i, w := range workers {
		queues[i] = w.Queue()
	}
	disp := dispatcher.New(conn, queues, log, m)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		cfg:     cfg,
		log:     log,
		metrics: m,
		cdr:     cdr,
		conn:    conn,
		workers: workers,
		disp:    disp,
		admin:   &http.Server{Addr: cfg.AdminAddr, Handler: mux},
	}, nil
}

// Serve starts the worker pool, the dispatcher's UDP read loop, and
// the admin HTTP listener. It blocks until ctx is cancelled or the
// dispatcher's read loop returns, then shuts everything down: the admin
// server, the UDP socket (which unblocks the dispatcher), and every
// worker queue.
func (s *Server) Serve(ctx context.Context) error {
	for _, w := range s.workers {
		go w.Run()
	}

	dispErrCh := make(chan error, 1)
	go func() { dispErrCh <- s.disp.Run() }()

	go func() {
		if err := s.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("admin listener exited")
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-dispErrCh:
		if err != nil {
			s.log.Error().Err(err).Msg("dispatcher exited")
		}
	}

	_ = s.admin.Shutdown(context.Background())
	_ = s.conn.Close()
	for _, w := range s.workers {
		w.Stop()
	}
	return nil
}
