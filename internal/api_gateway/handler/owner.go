package handler

import (
	"github.com/carebridge-wallet-ledger/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ownerFrom returns the authenticated owner or writes a 401
func ownerFrom(c *gin.Context) (uuid.UUID, bool) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return uuid.Nil, false
	}
	return ownerID, true
}

// uuidParam parses a path id or writes a 400
func uuidParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}
