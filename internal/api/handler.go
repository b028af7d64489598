package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"AlphaPulse/internal/model"
	"AlphaPulse/internal/watchlist"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SessionHeader correlates analysis requests from one client. Requests
// without it each get a session of their own.
const SessionHeader = "X-Session-ID"

// Service is the facade the API exposes.
type Service interface {
	Normalize(raw string) (string, error)
	WatchlistAdd(ctx context.Context, raw string) (string, watchlist.Outcome, error)
	WatchlistRemove(ctx context.Context, raw string) (string, watchlist.Outcome, error)
	WatchlistToggle(ctx context.Context, raw string) (string, watchlist.Outcome, error)
	WatchlistList(ctx context.Context) ([]model.WatchlistEntry, error)
	ToggleCurrent(ctx context.Context, session string) (string, watchlist.Outcome, error)
	Analyze(ctx context.Context, session, raw string) (model.AnalysisResult, error)
	Chart(ctx context.Context, raw string) (string, []byte, error)
	RefreshWatchlistSummaries(ctx context.Context) ([]model.Quote, error)
}

type symbolRequest struct {
	Symbol string `json:"symbol" query:"symbol" validate:"required"`
}

type mutationResponse struct {
	Symbol  string            `json:"symbol"`
	Outcome watchlist.Outcome `json:"outcome"`
}

type quotesResponse struct {
	Quotes  []model.Quote `json:"quotes"`
	Tracked int           `json:"tracked"`
	Omitted int           `json:"omitted"`
}

type analysisResponse struct {
	model.AnalysisResult
	Chart    []byte `json:"chart,omitempty"`
	HasChart bool   `json:"has_chart"`
}

// Handler serves the watchlist and analysis routes.
type Handler struct {
	svc Service
	log zerolog.Logger
}

func NewHandler(svc Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/normalize", h.Normalize)
	g.GET("/watchlist", h.ListWatchlist)
	g.POST("/watchlist", h.AddToWatchlist)
	g.DELETE("/watchlist/:symbol", h.RemoveFromWatchlist)
	g.POST("/watchlist/:symbol/toggle", h.ToggleWatchlist)
	g.POST("/watchlist/current/toggle", h.ToggleCurrent)
	g.GET("/quotes", h.Quotes)
	g.GET("/analysis/:symbol", h.Analysis)
	g.GET("/analysis/:symbol/chart.png", h.Chart)
}

func (h *Handler) Health(c echo.Context) error {
	return SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *Handler) Normalize(c echo.Context) error {
	req := &symbolRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return BadRequestResponse(c, verrs)
	}
	sym, err := h.svc.Normalize(req.Symbol)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, map[string]string{"symbol": sym})
}

func (h *Handler) ListWatchlist(c echo.Context) error {
	entries, err := h.svc.WatchlistList(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list watchlist")
		return AppErrorResponse(c, err)
	}
	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	return SuccessResponse(c, entries)
}

func (h *Handler) AddToWatchlist(c echo.Context) error {
	req := &symbolRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return BadRequestResponse(c, verrs)
	}
	sym, out, err := h.svc.WatchlistAdd(c.Request().Context(), req.Symbol)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	status := http.StatusOK
	if out == watchlist.Added {
		status = http.StatusCreated
	}
	return DataResponse(c, status, mutationResponse{Symbol: sym, Outcome: out})
}

func (h *Handler) RemoveFromWatchlist(c echo.Context) error {
	sym, out, err := h.svc.WatchlistRemove(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, mutationResponse{Symbol: sym, Outcome: out})
}

func (h *Handler) ToggleWatchlist(c echo.Context) error {
	sym, out, err := h.svc.WatchlistToggle(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, mutationResponse{Symbol: sym, Outcome: out})
}

func (h *Handler) ToggleCurrent(c echo.Context) error {
	sym, out, err := h.svc.ToggleCurrent(c.Request().Context(), session(c))
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, mutationResponse{Symbol: sym, Outcome: out})
}

func (h *Handler) Quotes(c echo.Context) error {
	ctx := c.Request().Context()
	entries, err := h.svc.WatchlistList(ctx)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	quotes, err := h.svc.RefreshWatchlistSummaries(ctx)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if quotes == nil {
		quotes = []model.Quote{}
	}
	tracked := max(len(entries), len(quotes))
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return SuccessResponse(c, quotesResponse{Quotes: quotes, Tracked: tracked, Omitted: tracked - len(quotes)})
}

// Analysis returns the aggregated view of a symbol; the chart is served by
// Chart and omitted here.
func (h *Handler) Analysis(c echo.Context) error {
	res, err := h.svc.Analyze(c.Request().Context(), session(c), c.Param("symbol"))
	if err != nil {
		return AppErrorResponse(c, err)
	}
	body := analysisResponse{AnalysisResult: res, HasChart: res.HasChart()}
	return DataResponse(c, analysisStatus(res.Status), body)
}

// Chart renders the symbol's price history without running a full analysis.
func (h *Handler) Chart(c echo.Context) error {
	sym, png, err := h.svc.Chart(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		h.log.Debug().Err(err).Str("symbol", sym).Msg("chart unavailable")
		return AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age="+cacheSeconds(5*time.Minute))
	return c.Blob(http.StatusOK, "image/png", png)
}

func analysisStatus(s model.Status) int {
	switch s {
	case model.StatusFound:
		return http.StatusOK
	case model.StatusNotFound:
		return http.StatusNotFound
	case model.StatusInvalid:
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}

func session(c echo.Context) string {
	if s := c.Request().Header.Get(SessionHeader); s != "" {
		return s
	}
	return uuid.NewString()
}

func cacheSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Seconds()))
}
