// Package domain defines the admin settlement of pending VIP payments.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/pattamap/pattamap-vip/pkg/db/pagination"
)

const (
	DecisionVerified = "verified"
	DecisionRejected = "rejected"
	// DecisionConfirmed is a PromptPay transfer confirmed by the provider.
	DecisionConfirmed = "confirmed"

	// RejectionNotePrefix marks subscription notes written by a rejection.
	RejectionNotePrefix = "Rejected: "
)

type Service interface {
	VerifyPayment(ctx context.Context, req VerifyRequest) (*subscriptiondomain.Subscription, error)
	RejectPayment(ctx context.Context, req RejectRequest) error
	ConfirmTransfer(ctx context.Context, req ConfirmTransferRequest) (*subscriptiondomain.Subscription, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (*ListTransactionsResult, error)
}

type VerifyRequest struct {
	AdminID       snowflake.ID
	TransactionID string
	Notes         string
}

type RejectRequest struct {
	AdminID       snowflake.ID
	TransactionID string
	Notes         string
}

// ConfirmTransferRequest carries a settled PromptPay transfer reported by
// the payment provider. AmountSatang is the amount received.
type ConfirmTransferRequest struct {
	EventID      string
	Reference    string
	AmountSatang int64
}

type ListTransactionsRequest struct {
	AdminID       snowflake.ID
	PaymentMethod string
	Status        string
	pagination.Pagination
}

type ListTransactionsResult struct {
	Transactions []subscriptiondomain.Transaction
	PageInfo     pagination.PageInfo
}
