package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"capsync/internal/daemon"
	"capsync/internal/logging"
	"capsync/internal/logs"
	"capsync/internal/session"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Capsync", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun capsync stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) RecordStart(req RecordStartRequest, resp *RecordStartResponse) error {
	s.log().Debug("record start requested", logging.String("user_id", req.UserID))
	sessionID, err := s.daemon.StartSession(session.Options{
		UserID:     req.UserID,
		AudioInput: req.AudioInput,
	})
	if err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.SessionID = sessionID
	resp.Message = "recording started"
	s.log().Info("session started via IPC",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldEventType, "record_start"))
	return nil
}

func (s *service) RecordStop(_ RecordStopRequest, resp *RecordStopResponse) error {
	s.log().Debug("record stop requested")
	summary, err := s.daemon.StopSession(s.ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			resp.Stopped = false
			resp.Message = "no active recording session"
			return nil
		}
		return err
	}
	resp.Stopped = true
	resp.SessionID = summary.SessionID
	resp.VideoUploaded = summary.Video.Uploaded
	resp.AudioUploaded = summary.Audio.Uploaded
	resp.Failed = summary.Video.Failed + summary.Audio.Failed
	resp.ScreenshotUploaded = summary.ScreenshotUploaded
	resp.Duration = summary.StoppedAt.Sub(summary.StartedAt).Round(time.Second).String()
	if summary.Err != nil {
		resp.Message = summary.Err.Error()
	} else {
		resp.Message = "recording stopped"
	}
	s.log().Info("session stopped via IPC",
		logging.String(logging.FieldSessionID, summary.SessionID),
		logging.String(logging.FieldEventType, "record_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Recording = status.Recording
	resp.SessionID = status.SessionID
	resp.UserID = status.UserID
	resp.LockPath = status.LockPath
	resp.StoreDBPath = status.StoreDBPath
	resp.LogPath = status.LogPath
	resp.PID = status.PID
	if len(status.Dependencies) > 0 {
		resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
		for _, dep := range status.Dependencies {
			resp.Dependencies = append(resp.Dependencies, DependencyStatus{
				Name:        dep.Name,
				Command:     dep.Command,
				Description: dep.Description,
				Optional:    dep.Optional,
				Available:   dep.Available,
				Detail:      dep.Detail,
			})
		}
	}
	if len(status.Checks) > 0 {
		resp.Checks = make([]CheckResult, 0, len(status.Checks))
		for _, check := range status.Checks {
			resp.Checks = append(resp.Checks, CheckResult{
				Name:   check.Name,
				Passed: check.Passed,
				Detail: check.Detail,
			})
		}
	}
	return nil
}

func (s *service) SessionList(req SessionListRequest, resp *SessionListResponse) error {
	records, err := s.daemon.Sessions(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Sessions = make([]SessionSummary, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		summary := SessionSummary{
			ID:                 record.ID,
			UserID:             record.UserID,
			Status:             string(record.Status),
			StartedAt:          record.StartedAt.Format(time.RFC3339),
			VideoUploaded:      record.VideoUploaded,
			VideoFailed:        record.VideoFailed,
			AudioUploaded:      record.AudioUploaded,
			AudioFailed:        record.AudioFailed,
			ScreenshotUploaded: record.ScreenshotUploaded,
			ErrorMessage:       record.ErrorMessage,
		}
		if !record.StoppedAt.IsZero() {
			summary.StoppedAt = record.StoppedAt.Format(time.RFC3339)
		}
		resp.Sessions = append(resp.Sessions, summary)
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	s.daemon.RequestShutdown()
	resp.ShuttingDown = true
	return nil
}
