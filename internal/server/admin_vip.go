package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/pattamap/pattamap-vip/internal/settlement/domain"
	"github.com/pattamap/pattamap-vip/pkg/db/pagination"
)

type adminNotesRequest struct {
	AdminNotes string `json:"admin_notes"`
}

type listVIPTransactionsQuery struct {
	PaymentMethod string `form:"payment_method"`
	Status        string `form:"status"`
	pagination.Pagination
}

// bindAdminNotes treats an empty body as no notes.
func bindAdminNotes(c *gin.Context) (string, error) {
	var req adminNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", invalidRequestError()
	}
	return req.AdminNotes, nil
}

func (s *Server) VerifyVIPPayment(c *gin.Context) {
	notes, err := bindAdminNotes(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, err := s.settlementSvc.VerifyPayment(c.Request.Context(), settlementdomain.VerifyRequest{
		AdminID:       userIDFromContext(c),
		TransactionID: c.Param("transactionId"),
		Notes:         notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Payment verified and VIP subscription activated",
		"subscription": subscription,
	})
}

func (s *Server) RejectVIPPayment(c *gin.Context) {
	notes, err := bindAdminNotes(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.settlementSvc.RejectPayment(c.Request.Context(), settlementdomain.RejectRequest{
		AdminID:       userIDFromContext(c),
		TransactionID: c.Param("transactionId"),
		Notes:         notes,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment rejected",
	})
}

func (s *Server) ListVIPTransactions(c *gin.Context) {
	var query listVIPTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.settlementSvc.ListTransactions(c.Request.Context(), settlementdomain.ListTransactionsRequest{
		AdminID:       userIDFromContext(c),
		PaymentMethod: query.PaymentMethod,
		Status:        query.Status,
		Pagination:    query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": result.Transactions,
		"count":        len(result.Transactions),
		"page_info":    result.PageInfo,
	})
}
