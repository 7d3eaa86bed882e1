package api

import (
	"errors"
	"net/http"

	models "Predictor/internal/domain/models"
	domrepo "Predictor/internal/domain/repository"
	"Predictor/internal/service/hostbridge"
	"Predictor/internal/service/ratelimit"
	"Predictor/internal/usecase"
	xhttp "Predictor/pkg/http"
	xlogger "Predictor/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// AnalysisEchoHandler exposes the screen session workflow over HTTP and the host
// bridge over a websocket.
type AnalysisEchoHandler struct {
	logger    *xlogger.Logger
	sessions  *usecase.SessionManager
	limiter   *ratelimit.Limiter
	metrics   domrepo.Metrics
	bridgeCfg hostbridge.Config
	upgrader  websocket.Upgrader
}

// NewAnalysisEchoHandler wires the handler. A nil limiter disables run throttling.
func NewAnalysisEchoHandler(
	logger *xlogger.Logger,
	sessions *usecase.SessionManager,
	limiter *ratelimit.Limiter,
	metrics domrepo.Metrics,
	bridgeCfg hostbridge.Config,
	allowOrigins []string,
) *AnalysisEchoHandler {
	return &AnalysisEchoHandler{
		logger:    logger,
		sessions:  sessions,
		limiter:   limiter,
		metrics:   metrics,
		bridgeCfg: bridgeCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowOrigins),
		},
	}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/timeframes", h.Timeframes)
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions/:id", h.GetSession)
	g.PUT("/sessions/:id/form", h.UpdateForm)
	g.POST("/sessions/:id/analysis", h.RunAnalysis)
	g.POST("/sessions/:id/reset", h.Reset)
	g.DELETE("/sessions/:id", h.Leave)
	g.GET("/sessions/:id/bridge", h.Bridge)
}

func (h *AnalysisEchoHandler) Timeframes(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, models.TimeframesResponse{
		Timeframes: domrepo.Timeframes(),
		Default:    string(domrepo.DefaultTimeframe()),
	})
}

func (h *AnalysisEchoHandler) CreateSession(c echo.Context) error {
	req := &models.CreateSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctrl, err := h.sessions.Create(req.Base, req.Quote, req.Timeframe)
	if err != nil {
		return h.fail(c, "create session", err)
	}
	return xhttp.CreatedResponse(c, ctrl.Snapshot())
}

func (h *AnalysisEchoHandler) GetSession(c echo.Context) error {
	ctrl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, "get session", err)
	}
	return xhttp.SuccessResponse(c, ctrl.Snapshot())
}

func (h *AnalysisEchoHandler) UpdateForm(c echo.Context) error {
	ctrl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, "update form", err)
	}
	req := &models.UpdateFormRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := ctrl.UpdateForm(req.Base, req.Quote, req.Timeframe); err != nil {
		return h.fail(c, "update form", err)
	}
	return xhttp.SuccessResponse(c, ctrl.Snapshot())
}

func (h *AnalysisEchoHandler) RunAnalysis(c echo.Context) error {
	ctrl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, "run analysis", err)
	}
	req := &models.RunAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if req.Base != nil || req.Quote != nil || req.Timeframe != nil {
		if err := ctrl.UpdateForm(req.Base, req.Quote, req.Timeframe); err != nil {
			return h.fail(c, "run analysis", err)
		}
	}
	if err := ctrl.RunAdmitted(h.admit(c)); err != nil {
		return h.fail(c, "run analysis", err)
	}
	return xhttp.AcceptedResponse(c, ctrl.Snapshot())
}

// admit consumes a throttle slot for the caller. Only valid runs reach it.
func (h *AnalysisEchoHandler) admit(c echo.Context) func() error {
	if h.limiter == nil {
		return nil
	}
	return func() error {
		ok, err := h.limiter.Allow(c.Request().Context(), c.RealIP())
		if err != nil {
			// throttle store down: let the run through
			h.metrics.RecordError("ratelimit")
			h.logger.Warn("rate limiter unavailable", xlogger.Error(err))
			return nil
		}
		if !ok {
			return usecase.ErrRunThrottled
		}
		return nil
	}
}

func (h *AnalysisEchoHandler) Reset(c echo.Context) error {
	ctrl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, "reset", err)
	}
	if err := ctrl.Reset(); err != nil {
		return h.fail(c, "reset", err)
	}
	return xhttp.SuccessResponse(c, ctrl.Snapshot())
}

func (h *AnalysisEchoHandler) Leave(c echo.Context) error {
	if err := h.sessions.Close(c.Param("id"), usecase.CloseLeft); err != nil {
		return h.fail(c, "leave", err)
	}
	return xhttp.NoContentResponse(c)
}

// Bridge upgrades to a websocket and attaches it as the session's host bridge
// until either side disconnects.
func (h *AnalysisEchoHandler) Bridge(c echo.Context) error {
	ctrl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, "bridge", err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Debug("bridge upgrade failed", xlogger.Error(err))
		return nil
	}

	b := hostbridge.NewWebSocketBridge(conn, h.bridgeCfg, h.logger.With(xlogger.String("session", ctrl.ID())))
	ctrl.AttachBridge(b)
	defer ctrl.DetachBridge(b)

	if err := b.Run(c.Request().Context()); err != nil {
		h.logger.Debug("bridge disconnected", xlogger.String("session", ctrl.ID()), xlogger.Error(err))
	}
	return nil
}

func (h *AnalysisEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.metrics.RecordError(op)
		h.logger.Error(op+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrEmptyField):
		return xhttp.NewAppError("ERR_EMPTY_FIELD", "", usecase.EmptyFieldMessage, http.StatusBadRequest)
	case errors.Is(err, usecase.ErrInvalidTimeframe):
		return xhttp.NewAppError("ERR_INVALID_TIMEFRAME", "timeframe", err.Error(), http.StatusBadRequest).
			WithParam("options", domrepo.Timeframes())
	case errors.Is(err, usecase.ErrSessionNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, usecase.ErrInvalidTransition), errors.Is(err, usecase.ErrSessionClosed):
		return xhttp.ConflictError(err.Error())
	case errors.Is(err, usecase.ErrRunThrottled):
		return xhttp.TooManyRequestsError("Too many analysis runs, try again shortly")
	case errors.Is(err, usecase.ErrTooManySessions):
		return xhttp.ServiceUnavailableError(err.Error())
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

func originChecker(allow []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allow {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
