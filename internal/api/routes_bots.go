package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/growbot-project/growbot/internal/bot"
)

// handleListBots returns every bot with its session snapshot.
func (s *Server) handleListBots(c *gin.Context) {
	bots := s.fleet.GetAllInfo()
	c.JSON(http.StatusOK, gin.H{
		"bots":    bots,
		"total":   s.fleet.Count(),
		"running": s.fleet.RunningCount(),
	})
}

// handleGetBot returns one bot by name.
func (s *Server) handleGetBot(c *gin.Context) {
	info, ok := s.findBot(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleStopBot stops a bot. It does not restart until the process does.
func (s *Server) handleStopBot(c *gin.Context) {
	name := c.Param("name")
	if err := s.fleet.Stop(name); err != nil {
		writeFleetError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping", "bot": name})
}

// handleReconnectBot drops a bot's connection so it dials the login server
// again.
func (s *Server) handleReconnectBot(c *gin.Context) {
	name := c.Param("name")
	if err := s.fleet.Reconnect(name); err != nil {
		writeFleetError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reconnecting", "bot": name})
}

func (s *Server) findBot(name string) (bot.Info, bool) {
	for _, info := range s.fleet.GetAllInfo() {
		if strings.EqualFold(info.Name, name) {
			return info, true
		}
	}
	return bot.Info{}, false
}

func writeFleetError(c *gin.Context, err error) {
	if errors.Is(err, bot.ErrUnknownBot) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
