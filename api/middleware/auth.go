package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagebrief/models"
)

// Auth returns API-key authentication for the brief endpoint. A key is
// accepted from either header:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no configured keys the endpoint is open. An accepted caller is
// recorded under KeyIdentity so RateLimit meters it per key.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		presented := presentedKey(c.Request)
		if presented == "" {
			abortWith(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"missing API key: send X-API-Key or Authorization: Bearer <key>")
			return
		}
		if !knownKey(keys, []byte(presented)) {
			abortWith(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid API key")
			return
		}
		c.Set(identityKey, KeyIdentity(presented))
		c.Next()
	}
}

// knownKey compares against every configured key so the time taken does
// not reveal which key, or how much of it, matched.
func knownKey(keys [][]byte, presented []byte) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(k, presented)
	}
	return match == 1
}

func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
