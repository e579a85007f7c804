package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagebrief/models"
)

// identityKey is the gin context key under which Auth stores the caller.
const identityKey = "identity"

// KeyIdentity names a caller authenticated by API key. Only a digest of
// the key is kept so limiter buckets never hold the credential.
func KeyIdentity(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:8])
}

// IPIdentity names an anonymous HTTP caller.
func IPIdentity(ip string) string { return "ip:" + ip }

// ChatIdentity names a Telegram chat.
func ChatIdentity(chatID int64) string { return "chat:" + strconv.FormatInt(chatID, 10) }

// callerIdentity is the identity set by Auth, or the client IP when the
// request was not authenticated.
func callerIdentity(c *gin.Context) string {
	if id := c.GetString(identityKey); id != "" {
		return id
	}
	return IPIdentity(c.ClientIP())
}

// abortWith stops the chain with the same error envelope the brief
// handler uses.
func abortWith(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.BriefResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}
