package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/growbot-project/growbot/internal/util"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 1000
)

// handleSystem returns host and process resource usage.
func (s *Server) handleSystem(c *gin.Context) {
	resp := gin.H{"system": util.GetSystemInfo()}

	if usage, err := util.GetCPUUsage(); err == nil {
		resp["cpu_percent"] = usage
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["memory"] = mem
	}
	if proc, err := util.GetProcessUsage(); err == nil {
		resp["process"] = proc
	}

	c.JSON(http.StatusOK, resp)
}

// handleGetConfig returns the running configuration with secrets removed.
func (s *Server) handleGetConfig(c *gin.Context) {
	appData := s.cfg.GetApplicationData()
	if appData.API.APIKey != "" {
		appData.API.APIKey = "********"
	}
	if appData.Discord.WebhookURL != "" {
		appData.Discord.WebhookURL = "********"
	}

	c.JSON(http.StatusOK, gin.H{
		"bot_data":         s.cfg.GetBotData(),
		"application_data": appData,
	})
}

// handleJournal returns recent journal entries, optionally for one bot.
func (s *Server) handleJournal(c *gin.Context) {
	if !s.requireJournal(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultJournalLimit)))
	if err != nil || limit < 1 {
		limit = defaultJournalLimit
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	entries, err := s.journal.Recent(c.Query("bot"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleJournalCounts returns per-type event counts for one bot.
func (s *Server) handleJournalCounts(c *gin.Context) {
	if !s.requireJournal(c) {
		return
	}

	counts, err := s.journal.CountByType(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bot": c.Param("name"), "counts": counts})
}

// handleAlerts returns unacknowledged health alerts.
func (s *Server) handleAlerts(c *gin.Context) {
	if !s.requireJournal(c) {
		return
	}

	alerts, err := s.journal.OpenAlerts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// handleAckAlert acknowledges a health alert.
func (s *Server) handleAckAlert(c *gin.Context) {
	if !s.requireJournal(c) {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	if err := s.journal.AcknowledgeAlert(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "id": id})
}

func (s *Server) requireJournal(c *gin.Context) bool {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal is disabled"})
		return false
	}
	return true
}
