package api

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/lpagent/internal/db"
	"github.com/rawblock/lpagent/internal/epoch"
	"github.com/rawblock/lpagent/internal/scheduler"
)

// Handler wires persistence, the run epoch container, and the scheduler
// into the dashboard's HTTP surface. Grounded on the teacher's route setup
// in internal/api/routes.go, generalized from the teacher's trade-journal
// endpoints to this domain's run/positions/trades shape.
type Handler struct {
	Store     *db.PostgresStore
	Epoch     *epoch.Container
	Scheduler *scheduler.Scheduler
	Hub       *Hub

	TradeHistoryLimit int
}

// SetupRouter builds the gin engine: a public group (health, dashboard
// page, websocket stream) and a bearer-auth + rate-limited group (the
// JSON query and control endpoints). Mirrors the teacher's split between
// open and protected route groups.
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	limiter := NewRateLimiter(120, 30)

	public := r.Group("/")
	public.GET("/api/v1/health", h.health)
	public.GET("/api/v1/stream", h.Hub.Subscribe)
	public.GET("/dashboard", h.dashboard)

	protected := r.Group("/api/v1")
	protected.Use(BearerAuth(), limiter.Middleware())
	protected.GET("/positions", h.listPositions)
	protected.GET("/trades", h.listTrades)
	protected.GET("/run", h.runSummary)
	protected.POST("/hold", h.setHoldMode)

	return r
}

func corsMiddleware() gin.HandlerFunc {
	allowed := os.Getenv("ALLOWED_ORIGINS")
	if allowed == "" {
		allowed = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowed)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (h *Handler) listPositions(c *gin.Context) {
	runID := h.Epoch.Epoch().RunID
	positions, err := h.Store.ListPositions(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (h *Handler) listTrades(c *gin.Context) {
	limit := h.TradeHistoryLimit
	if limit <= 0 {
		limit = 100
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	trades, err := h.Store.ListTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// runSummary reports the run epoch, accumulated P&L, and the scheduler's
// live status (positioned count, regime/congestion state, hold mode, and
// positionsAlignedPct — computed fresh on every call, never cached).
func (h *Handler) runSummary(c *gin.Context) {
	ep := h.Epoch.Epoch()

	totalPnL, closedCount, err := h.Store.RunPnL(c.Request.Context(), ep.RunID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	avgWin, err := h.Store.AverageWin(c.Request.Context(), ep.RunID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := h.Scheduler.Status()
	seal := h.Epoch.Seal()

	c.JSON(http.StatusOK, gin.H{
		"runId":               ep.RunID,
		"startedAt":           ep.StartedAt,
		"startingCapital":     ep.StartingCapital,
		"reconciledOpenCount": seal.OpenCount,
		"totalPnLUSD":         totalPnL,
		"closedTradeCount":    closedCount,
		"averageWinUSD":       avgWin,
		"positionedCount":     status.PositionedCount,
		"holdModeActive":      status.HoldModeActive,
		"congestionScore":     status.CongestionScore,
		"congestionBlocked":   status.CongestionBlocked,
		"regimeBlocked":       status.RegimeBlocked,
		"regimeReason":        status.RegimeReason,
		"positionsAlignedPct": status.PositionsAlignedPct,
	})
}

func (h *Handler) setHoldMode(c *gin.Context) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected {\"active\": bool}"})
		return
	}
	h.Scheduler.SetHoldMode(body.Active)
	c.JSON(http.StatusOK, gin.H{"holdModeActive": body.Active})
}

// dashboard serves a small run-scoped HTML view rather than the teacher's
// static file tree — there is no pre-built dashboard bundle in this repo,
// so the page is rendered server-side from live run status.
func (h *Handler) dashboard(c *gin.Context) {
	status := h.Scheduler.Status()
	ep := h.Epoch.Epoch()
	body := fmt.Sprintf(`<!doctype html>
<html><head><title>lpagent run %s</title>
<meta http-equiv="refresh" content="5">
<style>body{font-family:monospace;background:#111;color:#ddd;padding:2rem}
td,th{padding:0.25rem 1rem;text-align:left}</style></head>
<body>
<h1>run %s</h1>
<table>
<tr><th>positioned</th><td>%d</td></tr>
<tr><th>hold mode</th><td>%v</td></tr>
<tr><th>congestion score</th><td>%.2f</td></tr>
<tr><th>regime blocked</th><td>%v (%s)</td></tr>
<tr><th>positions aligned</th><td>%.0f%%</td></tr>
</table>
<p><a href="/api/v1/positions">positions</a> | <a href="/api/v1/trades">trades</a> | <a href="/api/v1/run">run json</a></p>
</body></html>`,
		ep.RunID, ep.RunID, status.PositionedCount, status.HoldModeActive,
		status.CongestionScore, status.RegimeBlocked, status.RegimeReason,
		status.PositionsAlignedPct*100)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}
