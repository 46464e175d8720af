package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/khaja-app/khaja/internal/catalog"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
)

type serviceRequestBody struct {
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

// createServiceRequest runs one service request through the entitlement
// gates. Allowed requests come back 201 with the updated ledger; refusals
// come back 422 with the reason code so callers can render it.
func (s *Server) createServiceRequest(c *gin.Context) {
	clientID, ok := s.clientID(c)
	if !ok {
		return
	}

	var body serviceRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}

	resp, err := s.subscriptionSvc.RequestService(c.Request.Context(), subscriptiondomain.RequestServiceRequest{
		ClientID:  clientID,
		ServiceID: catalog.ServiceID(strings.TrimSpace(body.ServiceID)),
		Quantity:  body.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordDecision(resp.Decision.Allowed, string(resp.Decision.Reason))

	if !resp.Decision.Allowed {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"data": resp})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
