package wyoming

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zetahernandez/whisper-fastapi/internal/engine"
	"github.com/zetahernandez/whisper-fastapi/internal/metrics"
)

// Capability description constants reported to peers.
const (
	programName        = "whisper-forward"
	programDescription = "Whisper forward to OpenAI API endpoint"
	programVersion     = "0.1"
	modelName          = "whisper-1"
)

// Server accepts event-protocol connections over TCP and runs one Handler per
// connection. All connections share the one engine adapter.
type Server struct {
	addr    string
	adapter *engine.Adapter
	metrics *metrics.Metrics
	logger  *slog.Logger
	info    *Event

	listener net.Listener
	cancel   context.CancelFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates an event-protocol server for a tcp:// URI.
func NewServer(uri string, adapter *engine.Adapter, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	addr, ok := strings.CutPrefix(uri, "tcp://")
	if !ok || addr == "" {
		return nil, fmt.Errorf("unsupported wyoming uri %q, expected tcp://host:port", uri)
	}

	info, err := NewInfo(capabilityInfo())
	if err != nil {
		return nil, fmt.Errorf("building capability description: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:    addr,
		adapter: adapter,
		metrics: m,
		logger:  logger,
		info:    info,
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// capabilityInfo enumerates what this service can do, including the engine's
// full language table.
func capabilityInfo() InfoData {
	attribution := Attribution{
		Name: "heimoshuiyu",
		URL:  "https://github.com/heimoshuiyu/whisper-fastapi",
	}

	return InfoData{
		Asr: []AsrProgram{{
			Name:        programName,
			Description: programDescription,
			Attribution: attribution,
			Installed:   true,
			Version:     programVersion,
			Models: []AsrModel{{
				Name:        modelName,
				Description: modelName,
				Attribution: Attribution{
					Name: "Systran",
					URL:  "https://huggingface.co/Systran",
				},
				Installed: true,
				Languages: engine.Languages(),
				Version:   programVersion,
			}},
		}},
	}
}

// Start begins accepting connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel

	s.logger.Info("Wyoming server listening", slog.String("address", s.addr))

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	return nil
}

// Stop closes the listener and all live connections, then waits for the
// connection goroutines to finish.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}

	s.cancel()
	err := s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Accept failed", slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// handleConn runs the event loop for one connection. A read error or protocol
// violation ends only this connection; any in-flight audio buffer is
// discarded with it.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.SessionEnded()
		}
	}()

	if s.metrics != nil {
		s.metrics.SessionStarted()
	}

	logger := s.logger.With(
		slog.String("session_id", uuid.NewString()),
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)
	logger.Info("Connection opened")

	handler := NewHandler(s.adapter, s.info, connWriter{conn}, logger)
	reader := bufio.NewReader(conn)

	for {
		ev, err := ReadEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Info("Connection closed by peer")
			} else {
				logger.Warn("Dropping connection", slog.String("error", err.Error()))
				if s.metrics != nil {
					s.metrics.RecordEventProtocolError()
				}
			}
			return
		}

		if s.metrics != nil {
			s.metrics.RecordEvent(ev.Type)
		}

		if err := handler.HandleEvent(ctx, ev); err != nil {
			logger.Warn("Protocol violation", slog.String("error", err.Error()))
			if s.metrics != nil {
				s.metrics.RecordEventProtocolError()
			}
			return
		}
	}
}

// connWriter adapts a net.Conn to the EventWriter interface.
type connWriter struct {
	conn net.Conn
}

func (w connWriter) WriteEvent(ev *Event) error {
	return WriteEvent(w.conn, ev)
}
