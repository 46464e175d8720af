package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khaja-app/khaja/internal/catalog"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
)

type createSubscriptionRequest struct {
	PlanID   string         `json:"plan_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) createSubscription(c *gin.Context) {
	clientID, ok := s.clientID(c)
	if !ok {
		return
	}

	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		ClientID: clientID,
		PlanID:   catalog.PlanID(strings.TrimSpace(req.PlanID)),
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type listSubscriptionsQuery struct {
	Status      string `form:"status"`
	PageToken   string `form:"page_token"`
	PageSize    int    `form:"page_size,default=50"`
	CreatedFrom string `form:"created_from"`
	CreatedTo   string `form:"created_to"`
}

// listSubscriptions serves the backoffice listing. Client-facing reads go
// through /subscriptions/current instead.
func (s *Server) listSubscriptions(c *gin.Context) {
	var query listSubscriptionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	createdFrom, err := parseOptionalTime(query.CreatedFrom)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_created_from", "invalid created_from"))
		return
	}
	createdTo, err := parseOptionalTime(query.CreatedTo)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_created_to", "invalid created_to"))
		return
	}

	resp, err := s.subscriptionSvc.List(c.Request.Context(), subscriptiondomain.ListSubscriptionsRequest{
		Status:      strings.TrimSpace(query.Status),
		PageToken:   query.PageToken,
		PageSize:    query.PageSize,
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Subscriptions, "page_info": resp.PageInfo})
}

func parseOptionalTime(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) getCurrentSubscription(c *gin.Context) {
	clientID, ok := s.clientID(c)
	if !ok {
		return
	}

	resp, err := s.subscriptionSvc.GetActiveByClientID(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) listAvailableServices(c *gin.Context) {
	clientID, ok := s.clientID(c)
	if !ok {
		return
	}

	resp, err := s.subscriptionSvc.AvailableServices(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) cancelSubscription(c *gin.Context) {
	clientID, ok := s.clientID(c)
	if !ok {
		return
	}

	current, err := s.subscriptionSvc.GetActiveByClientID(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	err = s.subscriptionSvc.Transition(c.Request.Context(),
		current.ID.String(),
		subscriptiondomain.SubscriptionStatusCanceled,
		subscriptiondomain.TransitionReasonClientCanceled,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"subscription_id": current.ID.String(),
		"status":          subscriptiondomain.SubscriptionStatusCanceled,
	}})
}
