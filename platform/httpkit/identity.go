// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated staff user. It abstracts identity
// extraction from the web framework so services never depend on gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Role returns the user's role (admin, doctor or employee).
	Role() string
	// HasRole checks if the user holds the given role.
	HasRole(role string) bool
	// IsAuthenticated reports whether a valid token was presented.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	role          string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID { return i.userID }
func (i *identity) Role() string      { return i.role }

func (i *identity) HasRole(role string) bool {
	return i.role == role
}

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a gin context. Returns an
// unauthenticated identity when no user info is present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	role := ""
	if value, ok := c.Get(ContextRoleKey); ok {
		role, _ = value.(string)
	}

	return &identity{userID: uid, role: role, authenticated: true}
}

// MustGetIdentity extracts the Identity or aborts with 401 and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
