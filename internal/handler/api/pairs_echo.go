package api

import (
	"errors"
	"net/http"
	"time"

	models "PairPull/internal/domain/models"
	drepo "PairPull/internal/domain/repository"
	"PairPull/internal/service/ratelimit"
	"PairPull/internal/usecase"
	xhttp "PairPull/pkg/http"
	xlogger "PairPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PairsHandler exposes the engine over Echo-based HTTP handlers.
type PairsHandler struct {
	logger   *xlogger.Logger
	analyzer *usecase.PairAnalyzer
	scanner  *usecase.WatchlistScanner
	monitor  *usecase.TradeMonitor
	state    drepo.StateStore
	history  drepo.HistoryStore
	rl       *ratelimit.Limiter
}

func NewPairsHandler(
	logger *xlogger.Logger,
	analyzer *usecase.PairAnalyzer,
	scanner *usecase.WatchlistScanner,
	monitor *usecase.TradeMonitor,
	state drepo.StateStore,
	history drepo.HistoryStore,
) *PairsHandler {
	return &PairsHandler{
		logger:   logger,
		analyzer: analyzer,
		scanner:  scanner,
		monitor:  monitor,
		state:    state,
		history:  history,
		rl:       ratelimit.New(),
	}
}

func (h *PairsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/watchlist", h.Watchlist)
	g.GET("/analyze", h.Analyze)
	g.POST("/analyze", h.Analyze)
	g.POST("/scan", h.Scan)
	g.GET("/trades", h.Trades)
	g.POST("/trades/enter", h.Enter)
	g.POST("/trades/exit", h.Exit)
	g.GET("/history", h.History)
}

// Watchlist returns the latest persisted scan result.
func (h *PairsHandler) Watchlist(c echo.Context) error {
	w, err := h.state.Watchlist(c.Request().Context())
	if err != nil {
		h.logger.Error("watchlist read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, w)
}

// Analyze evaluates an arbitrary pair on demand. Cutoff (RFC3339 or unix
// seconds) replays the evaluation as of a past date.
func (h *PairsHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":analyze", 5, 2) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many analyze requests", http.StatusTooManyRequests))
	}

	cutoff := xhttp.ParseTimeDefault(req.Cutoff, time.Time{})
	res, err := h.analyzer.Analyze(c.Request().Context(), req.Symbol1, req.Symbol2, req.Days, cutoff)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) || errors.Is(err, models.ErrDegenerateSpread) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("analyze usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Scan runs a full universe scan and returns the new watchlist.
func (h *PairsHandler) Scan(c echo.Context) error {
	w, err := h.scanner.Scan(c.Request().Context())
	if err != nil {
		h.logger.Error("scan usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, w)
}

// Trades returns the live trade set.
func (h *PairsHandler) Trades(c echo.Context) error {
	s, err := h.state.LiveTrades(c.Request().Context())
	if err != nil {
		h.logger.Error("live trades read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s)
}

// Enter opens a manual position on a pair.
func (h *PairsHandler) Enter(c echo.Context) error {
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair, err := models.ParsePair(req.Pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	trade, err := h.monitor.EnterPair(c.Request().Context(), pair)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateTradeAttempt) || errors.Is(err, models.ErrConcurrencyCapExceeded) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_CONFLICT", "", err.Error(), http.StatusConflict))
		}
		h.logger.Error("enter usecase error", xlogger.String("pair", pair.String()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, trade)
}

// Exit closes a live position regardless of z-score.
func (h *PairsHandler) Exit(c echo.Context) error {
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair, err := models.ParsePair(req.Pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	rec, err := h.monitor.ExitPair(c.Request().Context(), pair)
	if err != nil {
		if errors.Is(err, models.ErrTradeNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
		}
		h.logger.Error("exit usecase error", xlogger.String("pair", pair.String()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rec)
}

// History returns archived closed trades, optionally filtered by pair.
func (h *PairsHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	recs, err := h.history.Query(c.Request().Context(), req.Pair, req.Limit)
	if err != nil {
		h.logger.Error("history query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}
