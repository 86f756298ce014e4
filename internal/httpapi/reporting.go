package httpapi

import (
	"net/http"
	"strconv"

	"levlyfy/internal/audit"
	"levlyfy/internal/auth"
	"levlyfy/internal/reporting"

	"github.com/gin-gonic/gin"
)

func (h Handlers) Home(c *gin.Context) {
	home, err := h.Reporting.Home(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, home)
}

func (h Handlers) Leaderboard(c *gin.Context) {
	var req reporting.LeaderboardRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	lb, err := h.Reporting.Leaderboard(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h Handlers) MyStats(c *gin.Context) {
	period := reporting.Period(c.Query("period"))
	metric := reporting.Metric(c.Query("metric"))
	stats, err := h.Reporting.MyStats(c.Request.Context(), period, metric)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handlers) CallHistory(c *gin.Context) {
	history, err := h.Reporting.CallHistory(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": history})
}

func (h Handlers) CallsSummary(c *gin.Context) {
	sum, err := h.Reporting.CallsSummary(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// CallJournal lists the caller's own session journal, newest first.
func (h Handlers) CallJournal(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		// An empty id would drop the filter and list every agent.
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required", "redirect": auth.LoginPath})
		return
	}
	h.listJournal(c, uid)
}

// AdminJournal lists every agent's journal, optionally narrowed by ?userId.
func (h Handlers) AdminJournal(c *gin.Context) {
	h.listJournal(c, c.Query("userId"))
}

func (h Handlers) listJournal(c *gin.Context, userID string) {
	if h.Journal == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "journal not configured"})
		return
	}

	f := audit.Filter{UserID: userID, ProviderSessionID: c.Query("providerSessionId")}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		f.Limit = n
	}
	entries, err := h.Journal.List(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
