package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/standardbeagle/lexmatch/internal/debug"
	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/types"
	"github.com/standardbeagle/lexmatch/internal/version"
)

// maxBodyBytes bounds request bodies read by /extract
const maxBodyBytes = 8 << 20

// Server exposes an Extractor over HTTP
type Server struct {
	ex        *extractor.Extractor
	watcher   *extractor.Watcher
	addr      string
	listener  net.Listener
	server    *http.Server
	startTime time.Time
	wg        sync.WaitGroup
	mu        sync.RWMutex
	running   bool
}

// New creates a server for ex that will listen on addr
func New(ex *extractor.Extractor, addr string) *Server {
	return &Server{
		ex:        ex,
		addr:      addr,
		startTime: time.Now(),
	}
}

// SetWatcher attaches a watcher whose statistics /status reports
func (s *Server) SetWatcher(w *extractor.Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = w
}

// Handler returns the routing handler without starting a listener
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHandlers(mux)
	return mux
}

// Start begins listening for client connections
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogServer("serve error: %v\n", err)
		}
	}()

	debug.LogServer("listening on %s\n", listener.Addr())
	return nil
}

// Addr returns the bound address, which differs from the configured one
// when port 0 was requested.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/lookup", s.handleLookup)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/vocabularies", s.handleVocabularies)
	mux.HandleFunc("/reload", s.handleReload)
	mux.HandleFunc("/ping", s.handlePing)
}

// handleExtract accepts a message, a bare token list, or {"messages": [...]}
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	root := gjson.ParseBytes(body)
	switch {
	case root.IsArray():
		var tokens []types.Token
		if err := json.Unmarshal(body, &tokens); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		msg := types.Message{Tokens: tokens}
		s.ex.Process(&msg)
		writeJSON(w, http.StatusOK, msg)

	case root.IsObject() && root.Get("messages").Exists():
		var req ExtractRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.extractBatch(w, r.Context(), req.Messages)

	case root.IsObject():
		var msg types.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.ex.Process(&msg)
		writeJSON(w, http.StatusOK, msg)

	default:
		writeError(w, http.StatusBadRequest, "expected a message, a token list or {\"messages\": [...]}")
	}
}

func (s *Server) extractBatch(w http.ResponseWriter, ctx context.Context, msgs []types.Message) {
	if err := s.ex.ProcessBatch(ctx, msgs); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if msgs == nil {
		msgs = []types.Message{}
	}
	writeJSON(w, http.StatusOK, ExtractResponse{Messages: msgs})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	text := r.URL.Query().Get("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing text parameter")
		return
	}
	writeJSON(w, http.StatusOK, LookupResponse{Text: text, Groups: s.ex.Lookup(text)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	resp := StatusResponse{
		Vocabulary:    s.ex.Stats(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Version:       version.Version,
	}
	s.mu.RLock()
	if s.watcher != nil {
		stats := s.watcher.GetStats()
		resp.Watch = &stats
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVocabularies(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, VocabulariesResponse{Groups: s.ex.Groups()})
}

// handleReload reloads synchronously so the response reflects the outcome
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	debug.LogServer("reload requested\n")
	err := s.ex.Reload(r.Context())
	resp := ReloadResponse{Success: err == nil, Stats: s.ex.Stats()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{
		Uptime:  time.Since(s.startTime).Seconds(),
		Version: version.Version,
		BuildID: version.BuildID(),
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()

	debug.LogServer("shut down cleanly\n")
	return nil
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.LogServer("failed to write response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
