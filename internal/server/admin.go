package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/stats"
)

// statsRetention bounds how long usage statistics are kept.
const statsRetention = 365 * 24 * time.Hour

type adminStats struct {
	*stats.Summary
	ActiveWidgets int `json:"active_widgets"`
}

// GenerateAdminToken returns a random token for when none is configured.
func GenerateAdminToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// adminAuth accepts the token as a bearer header or the admin_token cookie.
func (s *Server) adminAuth(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		token, _ = c.Cookie("admin_token")
	}
	if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		s.logger.Warn().Str("client_ip", c.ClientIP()).Msg("rejected admin request")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) setupAdminRoutes(r *gin.Engine) {
	admin := r.Group("/admin")
	admin.Use(s.adminAuth)

	admin.GET("/api/stats", func(c *gin.Context) {
		st, ok := s.loadStats(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, st)
	})

	admin.GET("/export/stats", func(c *gin.Context) {
		st, ok := s.loadStats(c)
		if !ok {
			return
		}
		c.Header("Content-Disposition", "attachment; filename=widget-stats.json")
		s.logger.Info().Str("client_ip", c.ClientIP()).Msg("widget stats exported")
		c.JSON(http.StatusOK, st)
	})

	admin.POST("/privacy/prune", func(c *gin.Context) {
		if s.stats == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistics disabled"})
			return
		}
		n, err := s.stats.Prune(c.Request.Context(), statsRetention)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to prune widget stats")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prune statistics"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	})
}

func (s *Server) loadStats(c *gin.Context) (*adminStats, bool) {
	if s.stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistics disabled"})
		return nil, false
	}
	sum, err := s.stats.Summary(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load widget stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
		return nil, false
	}
	return &adminStats{Summary: sum, ActiveWidgets: s.registry.Len()}, true
}
