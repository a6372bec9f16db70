package api

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/growbot-project/growbot/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "growbot",
		"version": util.Version,
	})
}

// handleVersion returns the build and login versions.
func (s *Server) handleVersion(c *gin.Context) {
	botData := s.cfg.GetBotData()
	c.JSON(http.StatusOK, gin.H{
		"version":      util.Version,
		"go_version":   runtime.Version(),
		"game_version": botData.GameVersion,
	})
}
