// Package opsock — server.go
//
// Unix domain socket operator-command server: newline-delimited JSON over a
// Unix socket, one request/response per connection, bearer-token
// authenticated. Socket lifecycle uses 0600 permissions, semaphore-bounded
// concurrent connections, bounded request size, and read/write deadlines.
// Requests carry the six-boolean OperatorCommand plus a JWT bearer check,
// since the cockpit operator is the sole actor allowed to clear a fault.
package opsock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// Request is the JSON structure for an operator socket command.
type Request struct {
	Cmd   string `json:"cmd"` // command | status | list
	Token string `json:"token"`

	RequestAutomatic bool `json:"request_automatic,omitempty"`
	RequestManual    bool `json:"request_manual,omitempty"`
	Rearm            bool `json:"rearm,omitempty"`
	Accelerate       bool `json:"accelerate,omitempty"`
	SteerRight       bool `json:"steer_right,omitempty"`
	SteerLeft        bool `json:"steer_left,omitempty"`
}

// TruckStatus is a single truck's reported mode/fault snapshot.
type TruckStatus struct {
	TruckID   int  `json:"truck_id"`
	Automatic bool `json:"automatic"`
	Fault     bool `json:"fault"`
	FaultCode int  `json:"fault_code"`
}

// Response is the JSON structure for an operator socket reply.
type Response struct {
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	Automatic bool          `json:"automatic,omitempty"`
	Fault     bool          `json:"fault,omitempty"`
	FaultCode int           `json:"fault_code,omitempty"`
	Trucks    []TruckStatus `json:"trucks,omitempty"`
}

// Server is the operator Unix domain socket server for one truck's agent.
type Server struct {
	socketPath string
	truckID    int
	h          *hub.DataHub
	events     *hub.Events
	auth       *Authenticator
	log        *zap.Logger
	sem        chan struct{}
}

// NewServer builds a Server dispatching commands onto h/events.
func NewServer(socketPath string, truckID int, h *hub.DataHub, events *hub.Events, auth *Authenticator, log *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		truckID:    truckID,
		h:          h,
		events:     events,
		auth:       auth,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe starts the operator socket server. Removes any stale
// socket file before binding. Blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("opsock: remove stale socket %q: %w", s.socketPath, err)
	}

	if dir := filepath.Dir(s.socketPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("opsock: mkdir %q: %w", dir, err)
		}
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("opsock: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("opsock: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("operator socket listening", zap.String("path", s.socketPath))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("opsock: accept error", zap.Error(err))
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("opsock: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("opsock: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	claims, err := s.auth.Validate(strings.TrimSpace(req.Token))
	if err != nil {
		s.writeResponse(conn, Response{OK: false, Error: err.Error()})
		return
	}

	resp := s.dispatch(req)
	s.log.Info("opsock: command handled",
		zap.String("operator", claims.Operator),
		zap.String("cmd", req.Cmd),
		zap.Bool("ok", resp.OK))
	s.writeResponse(conn, resp)
}

func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "command":
		return s.cmdCommand(req)
	case "status":
		return s.cmdStatus()
	case "list":
		return s.cmdList()
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdCommand(req Request) Response {
	s.h.SetOperatorCommand(hub.OperatorCommand{
		RequestAutomatic: req.RequestAutomatic,
		RequestManual:    req.RequestManual,
		Rearm:            req.Rearm,
		Accelerate:       req.Accelerate,
		SteerRight:       req.SteerRight,
		SteerLeft:        req.SteerLeft,
	})
	return s.cmdStatus()
}

func (s *Server) cmdStatus() Response {
	state := s.h.GetState()
	active, code := s.events.State()
	resp := Response{OK: true, Automatic: state.Automatic, Fault: state.Fault}
	if active {
		resp.FaultCode = code
	}
	return resp
}

func (s *Server) cmdList() Response {
	state := s.h.GetState()
	_, code := s.events.State()
	return Response{OK: true, Trucks: []TruckStatus{{
		TruckID:   s.truckID,
		Automatic: state.Automatic,
		Fault:     state.Fault,
		FaultCode: code,
	}}}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}
