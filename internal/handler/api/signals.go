package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/service/ratelimit"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
)

// SignalHandler serves the read-only signal API. All state it exposes is
// owned by the scheduler; handlers never trigger upstream calls.
type SignalHandler struct {
	store    drepo.SignalStore
	history  drepo.HistoryStore
	limiter  *ratelimit.Limiter
	archiver drepo.SnapshotArchiver
	log      *logger.Logger
	started  time.Time
}

// NewSignalHandler wires the API handler. archiver may be nil.
func NewSignalHandler(
	store drepo.SignalStore,
	history drepo.HistoryStore,
	limiter *ratelimit.Limiter,
	archiver drepo.SnapshotArchiver,
	log *logger.Logger,
) *SignalHandler {
	return &SignalHandler{
		store:    store,
		history:  history,
		limiter:  limiter,
		archiver: archiver,
		log:      log,
		started:  time.Now(),
	}
}

// RegisterRoutes registers API routes.
func (h *SignalHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals/:tf", h.Signals)
	g.GET("/signals/:tf/:symbol", h.Signal)
	g.GET("/limiter", h.Limiter)
	g.GET("/history/:symbol", h.History)
	g.GET("/health", h.Health)
}

// Signals returns every stored signal for one timeframe.
func (h *SignalHandler) Signals(c echo.Context) error {
	var req models.SignalsRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	sigs, err := h.store.All(c.Request().Context(), drepo.Timeframe(req.TF))
	if err != nil {
		h.log.Error("list signals", logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.ListResponse(c, sigs, int64(len(sigs)))
}

// Signal returns the latest signal for one (symbol, timeframe) key.
func (h *SignalHandler) Signal(c echo.Context) error {
	var req models.SignalRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}
	symbol := strings.ToUpper(req.Symbol)

	sig, ok, err := h.store.Get(c.Request().Context(), symbol, drepo.Timeframe(req.TF))
	if err != nil {
		h.log.Error("get signal", logger.String("symbol", symbol), logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if !ok {
		return xhttp.NotFoundResponse(c, "no signal for "+symbol+"/"+req.TF)
	}
	return xhttp.SuccessResponse(c, sig)
}

// Limiter exposes rate limiter and breaker telemetry.
func (h *SignalHandler) Limiter(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.limiter.Snapshot())
}

type historyResponse struct {
	Symbol string                  `json:"symbol"`
	Tier   models.QualityTier      `json:"tier"`
	Count  int                     `json:"count"`
	Window []models.MarketSnapshot `json:"window"`
}

// History returns the stored snapshot window for one symbol, newest last.
func (h *SignalHandler) History(c echo.Context) error {
	var req models.HistoryRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}
	symbol := strings.ToUpper(req.Symbol)

	window, tier, err := h.history.Read(c.Request().Context(), symbol)
	if err != nil {
		h.log.Error("read history", logger.String("symbol", symbol), logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	from, hasFrom := xhttp.ParseTime(c.QueryParam("from"))
	to, hasTo := xhttp.ParseTime(c.QueryParam("to"))
	if hasFrom || hasTo {
		// Snapshots arrive on a one-minute cadence; align the bounds so a
		// mid-minute query does not clip the interval it lands in.
		from, to = xhttp.AlignRange(from, to, time.Minute)
	}
	if hasFrom {
		window = trimBefore(window, from)
	}
	if hasTo {
		window = trimAfter(window, to)
	}
	if req.Limit > 0 && len(window) > req.Limit {
		window = window[len(window)-req.Limit:]
	}
	return xhttp.SuccessResponse(c, historyResponse{
		Symbol: symbol,
		Tier:   tier,
		Count:  len(window),
		Window: window,
	})
}

// trimBefore drops snapshots older than t. The window is append-ordered, so
// a linear scan from the front suffices.
func trimBefore(w []models.MarketSnapshot, t time.Time) []models.MarketSnapshot {
	for i := range w {
		if !w[i].Timestamp.Before(t) {
			return w[i:]
		}
	}
	return nil
}

func trimAfter(w []models.MarketSnapshot, t time.Time) []models.MarketSnapshot {
	for i := len(w) - 1; i >= 0; i-- {
		if !w[i].Timestamp.After(t) {
			return w[:i+1]
		}
	}
	return nil
}

type healthResponse struct {
	Status    string `json:"status"`
	UptimeSec int64  `json:"uptime_sec"`
	Breaker   string `json:"breaker"`
	Archive   string `json:"archive,omitempty"`
}

// Health reports process liveness plus breaker and archive status. The
// service stays "ok" while degraded; only a dead archive marks it so.
func (h *SignalHandler) Health(c echo.Context) error {
	resp := healthResponse{
		Status:    "ok",
		UptimeSec: int64(time.Since(h.started).Seconds()),
		Breaker:   string(h.limiter.Snapshot().Breaker),
	}
	if h.archiver != nil {
		if err := h.archiver.Health(c.Request().Context()); err != nil {
			resp.Archive = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Archive = "ok"
		}
	}
	return xhttp.SuccessResponse(c, resp)
}
