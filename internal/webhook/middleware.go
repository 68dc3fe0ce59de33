package webhook

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyAuthMiddleware validates the X-Webhook-API-Key header against the
// stored key hashes.
func APIKeyAuthMiddleware(repo *Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-Webhook-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		key, err := repo.GetByHash(c.Request.Context(), HashKey(apiKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		if len(key.AllowedDomains) > 0 {
			origin := c.GetHeader("Origin")
			if origin == "" {
				origin = c.GetHeader("Referer")
			}
			if !isDomainAllowed(origin, key.AllowedDomains) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "domain not allowed"})
				return
			}
		}

		c.Set("webhookKeyID", key.ID)
		c.Next()
	}
}

// isDomainAllowed matches the origin host against the allowlist. Exact
// hosts and wildcard subdomains ("*.example.com") are supported.
func isDomainAllowed(origin string, allowedDomains []string) bool {
	if origin == "" {
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		host = strings.ToLower(origin)
	}

	for _, domain := range allowedDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		switch {
		case domain == "*":
			return true
		case strings.HasPrefix(domain, "*."):
			if strings.HasSuffix(host, domain[1:]) || host == domain[2:] {
				return true
			}
		case host == domain:
			return true
		}
	}
	return false
}
