package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/metrics"
	"github.com/duocall/signaling/internal/v1/ratelimit"
	"github.com/duocall/signaling/internal/v1/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler accepts signaling connections: it upgrades HTTP requests on the
// signaling path, mints a session id, and hands the peer to the coordinator.
type Handler struct {
	sink           types.EventSink
	pingPeriod     time.Duration
	idleTimeout    time.Duration
	allowedOrigins []string
	rateLimiter    *ratelimit.RateLimiter
}

// NewHandler configures the WebSocket entry point. allowedOrigins may be
// empty to admit any origin; rateLimiter may be nil to disable limiting.
func NewHandler(sink types.EventSink, pingPeriod, idleTimeout time.Duration, allowedOrigins []string, rateLimiter *ratelimit.RateLimiter) *Handler {
	return &Handler{
		sink:           sink,
		pingPeriod:     pingPeriod,
		idleTimeout:    idleTimeout,
		allowedOrigins: allowedOrigins,
		rateLimiter:    rateLimiter,
	}
}

// ServeWs upgrades the request and starts the peer's pumps.
func (h *Handler) ServeWs(c *gin.Context) {
	if h.rateLimiter != nil && !h.rateLimiter.CheckWebSocket(c) {
		return // Response already written by CheckWebSocket
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "WebSocket upgrade failed", zap.Error(err))
		return
	}

	id := types.SessionIDType(uuid.New().String())
	peer := NewPeer(conn, id, h.sink, h.pingPeriod, h.idleTimeout)

	metrics.IncConnection()
	logging.Info(c.Request.Context(), "Accepted signaling connection",
		zap.String("sessionId", string(id)),
		zap.String("remoteAddr", c.Request.RemoteAddr))

	h.sink.OnOpen(peer)

	go peer.writePump()
	go peer.readPump()
}

// validateOrigin checks the request origin against the allowed list. An
// absent Origin header is admitted so non-browser clients can connect.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	if len(allowedOrigins) == 0 {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(context.Background(), "Invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(context.Background(), "Origin not in allowed list",
		zap.String("origin", origin), zap.Strings("allowedOrigins", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}
