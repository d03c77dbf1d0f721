package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
)

// contextSubscriptionTypeKey is read by the request logger.
const contextSubscriptionTypeKey = "subscription_type"

type purchaseVIPRequest struct {
	SubscriptionType string      `json:"subscription_type"`
	EntityID         json.Number `json:"entity_id"`
	Duration         int         `json:"duration"`
	PaymentMethod    string      `json:"payment_method"`
}

type cancelVIPRequest struct {
	SubscriptionType string `json:"subscription_type"`
}

func (s *Server) GetVIPPricing(c *gin.Context) {
	entityType, prices, err := s.subscriptionSvc.GetPricing(c.Request.Context(), c.Param("type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"type":    entityType,
		"pricing": prices,
	})
}

func (s *Server) PurchaseVIP(c *gin.Context) {
	var req purchaseVIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	c.Set(contextSubscriptionTypeKey, strings.TrimSpace(req.SubscriptionType))

	result, err := s.subscriptionSvc.Purchase(c.Request.Context(), subscriptiondomain.PurchaseRequest{
		UserID:           userIDFromContext(c),
		SubscriptionType: req.SubscriptionType,
		EntityID:         strings.TrimSpace(req.EntityID.String()),
		Duration:         req.Duration,
		PaymentMethod:    req.PaymentMethod,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"message":      result.Message,
		"subscription": result.Subscription,
		"transaction":  result.Transaction,
	})
}

func (s *Server) ListMyVIPSubscriptions(c *gin.Context) {
	subscriptions, err := s.subscriptionSvc.ListMine(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"subscriptions": subscriptions,
	})
}

func (s *Server) CancelVIPSubscription(c *gin.Context) {
	var req cancelVIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	c.Set(contextSubscriptionTypeKey, strings.TrimSpace(req.SubscriptionType))

	subscription, err := s.subscriptionSvc.Cancel(c.Request.Context(), subscriptiondomain.CancelRequest{
		UserID:           userIDFromContext(c),
		SubscriptionType: req.SubscriptionType,
		SubscriptionID:   c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"subscription": subscription,
	})
}
