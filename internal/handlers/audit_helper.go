package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
)

// logAdminAction writes an audit line for a privileged operation, with the
// client device parsed out of the User-Agent header. Audit logging never
// fails the request.
func logAdminAction(c *gin.Context, logger *logrus.Logger, actor, action, target string) {
	ua := user_agent.New(c.Request.UserAgent())
	browser, version := ua.Browser()

	logger.WithFields(logrus.Fields{
		"actor":   actor,
		"action":  action,
		"target":  target,
		"ip":      c.ClientIP(),
		"os":      ua.OS(),
		"browser": browser + " " + version,
		"mobile":  ua.Mobile(),
	}).Info("Admin action")
}
