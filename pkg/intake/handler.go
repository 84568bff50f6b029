package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rmon-protocol/rmon-go/pkg/catalog"
	"github.com/rmon-protocol/rmon-go/pkg/log"
	"github.com/rmon-protocol/rmon-go/pkg/report"
	"github.com/rmon-protocol/rmon-go/pkg/session"
	"github.com/rmon-protocol/rmon-go/pkg/statuspage"
	"github.com/rmon-protocol/rmon-go/pkg/transport"
	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

// Response messages.
const (
	ReceivedMessage      = "Data received"
	InvalidJSONMessage   = "Invalid JSON"
	TooLargeMessage      = "Payload too large"
	InternalErrorMessage = "Internal Server Error"
)

// RawPrefixLen is how much of a rejected body is logged.
const RawPrefixLen = 200

// TelemetryRenderer renders one decoded push.
type TelemetryRenderer interface {
	Telemetry(req *wire.TelemetryRequest, origin report.Origin) (*report.Report, error)
}

// Config configures the intake handler.
type Config struct {
	// Renderer receives decoded pushes (required).
	Renderer TelemetryRenderer

	// Policy picks the next_command of every reply (default: random).
	Policy catalog.Policy

	// Registry tracks in-flight requests. Optional.
	Registry *session.Registry

	// MaxBodySize bounds request bodies (default: transport.DefaultMaxMessageSize).
	MaxBodySize int64

	// Status supplies the status page contents. Optional; without it the
	// page shows only registry data.
	Status func() statuspage.Status

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events. Optional.
	ProtocolLogger log.Logger

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time
}

// Handler is the intake http.Handler.
type Handler struct {
	config Config
	router *mux.Router
	plog   log.Logger
}

// NewHandler creates the intake handler.
func NewHandler(config Config) (*Handler, error) {
	if config.Renderer == nil {
		return nil, errors.New("intake: renderer is required")
	}
	if config.Policy == nil {
		config.Policy = catalog.NewRandomPolicy(catalog.Suggestions, nil)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = transport.DefaultMaxMessageSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	h := &Handler{
		config: config,
		plog:   log.OrNoop(config.ProtocolLogger),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.handleTelemetry).Methods(http.MethodPost)
	r.HandleFunc("/", h.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	h.router = r

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	start := h.config.Clock()
	connID := uuid.New().String()
	logger := h.config.Logger.With("remote", r.RemoteAddr, "conn", connID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("telemetry rejected", "error", err, "limit", tooLarge.Limit)
			h.logError(connID, r.RemoteAddr, err, "read body")
			h.writeError(w, http.StatusRequestEntityTooLarge, TooLargeMessage)
			return
		}
		logger.Warn("failed to read telemetry body", "error", err)
		h.logError(connID, r.RemoteAddr, err, "read body")
		h.writeError(w, http.StatusBadRequest, InvalidJSONMessage)
		return
	}

	req, err := wire.DecodeTelemetry(body)
	if err != nil {
		err = fmt.Errorf("%w: %w", transport.ErrMalformedMessage, err)
		logger.Warn("invalid JSON", "error", err, "raw", rawPrefix(body))
		h.logError(connID, r.RemoteAddr, err, "decode")
		h.writeError(w, http.StatusBadRequest, InvalidJSONMessage)
		return
	}

	sess := h.track(r.RemoteAddr, connID, req.DeviceID, logger)
	if sess != nil {
		defer func() {
			h.config.Registry.Remove(sess)
			sess.Close()
		}()
	}

	h.logMessage(connID, r.RemoteAddr, log.DirectionIn, req.Type, "", nil)

	origin := report.Origin{RemoteAddr: r.RemoteAddr, Size: len(body)}
	if _, err := h.config.Renderer.Telemetry(req, origin); err != nil {
		logger.Error("failed to process telemetry", "type", req.Type, "error", err, "raw", rawPrefix(body))
		h.logError(connID, r.RemoteAddr, err, "render")
		h.writeError(w, http.StatusInternalServerError, InternalErrorMessage)
		return
	}

	resp := wire.TelemetryResponse{
		Status:      wire.StatusSuccess,
		Message:     ReceivedMessage,
		Timestamp:   h.config.Clock().Unix(),
		NextCommand: h.config.Policy.Next(),
	}
	writeJSON(w, http.StatusOK, resp)

	elapsed := h.config.Clock().Sub(start)
	h.logMessage(connID, r.RemoteAddr, log.DirectionOut, req.Type, resp.NextCommand.Command, &elapsed)
	logger.Debug("telemetry processed", "type", req.Type, "device", req.DeviceID, "next", resp.NextCommand.Command)
}

// track registers the request as a push session. It returns nil when no
// registry is configured or the peer address is already tracked.
func (h *Handler) track(remoteAddr, connID, deviceID string, logger *slog.Logger) *session.Session {
	if h.config.Registry == nil {
		return nil
	}
	sess := session.NewPush(remoteAddr, connID, nil, h.plog)
	if err := h.config.Registry.Add(sess); err != nil {
		logger.Debug("request not tracked", "error", err)
		return nil
	}
	if err := sess.AuthorizePush(); err != nil {
		logger.Debug("failed to authorize push session", "error", err)
	}
	sess.SetDeviceID(deviceID)
	return sess
}

func (h *Handler) handlePage(w http.ResponseWriter, _ *http.Request) {
	page, err := statuspage.Render(h.status())
	if err != nil {
		h.config.Logger.Error("failed to render status page", "error", err)
		http.Error(w, InternalErrorMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.status().Document())
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) status() statuspage.Status {
	var st statuspage.Status
	if h.config.Status != nil {
		st = h.config.Status()
	}
	if st.Now.IsZero() {
		st.Now = h.config.Clock()
	}
	if h.config.Registry != nil {
		st.ActiveSessions = h.config.Registry.Len()
	}
	if st.TelemetryTypes == nil {
		st.TelemetryTypes = report.TelemetryTypes()
	}
	return st
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, wire.ErrorResponse{
		Status:    wire.StatusError,
		Message:   message,
		Timestamp: h.config.Clock().Unix(),
	})
}

func (h *Handler) logMessage(connID, remote string, dir log.Direction, typ, command string, elapsed *time.Duration) {
	status := ""
	if dir == log.DirectionOut {
		status = wire.StatusSuccess
	}
	h.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Mode:         session.ModePush.String(),
		RemoteAddr:   remote,
		Message: &log.MessageEvent{
			Type:           typ,
			Command:        command,
			Status:         status,
			ProcessingTime: elapsed,
		},
	})
}

func (h *Handler) logError(connID, remote string, err error, where string) {
	h.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerWire,
		Category:     log.CategoryError,
		Mode:         session.ModePush.String(),
		RemoteAddr:   remote,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: where,
		},
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func rawPrefix(body []byte) string {
	if len(body) > RawPrefixLen {
		return string(body[:RawPrefixLen]) + "..."
	}
	return string(body)
}
