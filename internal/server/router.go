// Package server exposes the supervisor over HTTP and a websocket event
// stream.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/devsup/internal/auth"
	"github.com/loykin/devsup/internal/hub"
	"github.com/loykin/devsup/internal/metrics"
	"github.com/loykin/devsup/internal/resolver"
	"github.com/loykin/devsup/internal/stats"
	"github.com/loykin/devsup/internal/supervisor"
)

// Supervisor is the subset of *supervisor.Supervisor the router drives.
type Supervisor interface {
	Start(key int, cwd, command string) supervisor.StartResult
	Stop(key int)
	Write(key int, data []byte)
	Resize(key int, cols, rows uint16)
	Port(key int) (int, bool)
	List() []supervisor.Info
	Stats(ctx context.Context, key int) (*stats.Snapshot, bool)
}

type Options struct {
	BasePath string
	Token    string
	// Metrics mounts /metrics on this router.
	Metrics bool
	Logger  *slog.Logger
}

// Router provides embeddable HTTP handlers for the dev server channels.
// Endpoints, all under basePath:
//
//	POST /webapp-start            {key, cwd, command?}
//	POST /webapp-stop             {key}
//	POST /webapp-detect-framework {cwd}
//	POST /webapp-get-port         {key}
//	POST /webapp-input            {key, data}
//	POST /webapp-resize           {key, cols, rows}
//	GET  /webapp-list
//	POST /webapp-stats            {key}
//	GET  /events                  websocket
//	GET  /healthz
type Router struct {
	sup      Supervisor
	hub      *hub.Hub
	auth     *auth.Middleware
	basePath string
	metrics  bool
	log      *slog.Logger
}

func NewRouter(sup Supervisor, h *hub.Hub, opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		sup:      sup,
		hub:      h,
		auth:     auth.NewMiddleware(opts.Token),
		basePath: sanitizeBase(opts.BasePath),
		metrics:  opts.Metrics,
		log:      log,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.Use(r.auth.GinAuth())
	group.GET("/healthz", r.handleHealth)
	group.POST("/webapp-start", r.handleStart)
	group.POST("/webapp-stop", r.handleStop)
	group.POST("/webapp-detect-framework", r.handleDetectFramework)
	group.POST("/webapp-get-port", r.handleGetPort)
	group.POST("/webapp-input", r.handleInput)
	group.POST("/webapp-resize", r.handleResize)
	group.GET("/webapp-list", r.handleList)
	group.POST("/webapp-stats", r.handleStats)
	group.GET("/events", r.handleEvents)
	if r.metrics {
		g.GET("/metrics", r.auth.GinAuth(), gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer binds addr and serves h in the background. Bind errors are
// returned; serve errors after that are logged.
func NewServer(addr string, h http.Handler, log *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", "addr", server.Addr, "err", err)
		}
	}()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type successResp struct {
	Success bool `json:"success"`
}

type startReq struct {
	Key     *int   `json:"key"`
	Cwd     string `json:"cwd"`
	Command string `json:"command"`
}

type keyReq struct {
	Key *int `json:"key"`
}

type cwdReq struct {
	Cwd string `json:"cwd"`
}

type inputReq struct {
	Key  int    `json:"key"`
	Data []byte `json:"data"`
}

type resizeReq struct {
	Key  int    `json:"key"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStart(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Key == nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "key required"})
		return
	}
	if !isSafeAbsPath(req.Cwd) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid cwd: must be absolute path without traversal"})
		return
	}
	writeJSON(c, http.StatusOK, r.sup.Start(*req.Key, req.Cwd, req.Command))
}

func (r *Router) handleStop(c *gin.Context) {
	key, ok := bindKey(c)
	if !ok {
		return
	}
	r.sup.Stop(key)
	writeJSON(c, http.StatusOK, successResp{Success: true})
}

func (r *Router) handleDetectFramework(c *gin.Context) {
	var req cwdReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isSafeAbsPath(req.Cwd) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid cwd: must be absolute path without traversal"})
		return
	}
	writeJSON(c, http.StatusOK, resolver.DetectFramework(req.Cwd))
}

func (r *Router) handleGetPort(c *gin.Context) {
	key, ok := bindKey(c)
	if !ok {
		return
	}
	if port, found := r.sup.Port(key); found {
		writeJSON(c, http.StatusOK, port)
		return
	}
	writeJSON(c, http.StatusOK, nil)
}

// handleInput and handleResize are fire-and-forget: they never report
// failure, matching the event-channel semantics.
func (r *Router) handleInput(c *gin.Context) {
	var req inputReq
	if err := c.ShouldBindJSON(&req); err == nil {
		r.sup.Write(req.Key, req.Data)
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) handleResize(c *gin.Context) {
	var req resizeReq
	if err := c.ShouldBindJSON(&req); err == nil {
		r.sup.Resize(req.Key, req.Cols, req.Rows)
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.List())
}

func (r *Router) handleStats(c *gin.Context) {
	key, ok := bindKey(c)
	if !ok {
		return
	}
	if snap, found := r.sup.Stats(c.Request.Context(), key); found {
		writeJSON(c, http.StatusOK, snap)
		return
	}
	writeJSON(c, http.StatusOK, nil)
}

func bindKey(c *gin.Context) (int, bool) {
	var req keyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return 0, false
	}
	if req.Key == nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "key required"})
		return 0, false
	}
	return *req.Key, true
}
