package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pattamap/pattamap-vip/internal/clock"
	"github.com/pattamap/pattamap-vip/internal/config"
	"github.com/pattamap/pattamap-vip/internal/observability/metrics"
	paymentdomain "github.com/pattamap/pattamap-vip/internal/payment/domain"
	settlementdomain "github.com/pattamap/pattamap-vip/internal/settlement/domain"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/pattamap/pattamap-vip/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// signatureTolerance bounds the age of a signed delivery.
const signatureTolerance = 5 * time.Minute

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Settlement settlementdomain.Service
	Config     *config.PaymentConfigHolder
	Workflow   *metrics.WorkflowMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       paymentdomain.Repository
	settlement settlementdomain.Service
	config     *config.PaymentConfigHolder
	workflow   *metrics.WorkflowMetrics
}

type transferEvent struct {
	EventID   string      `json:"event_id"`
	Status    string      `json:"status"`
	Reference string      `json:"reference"`
	Amount    json.Number `json:"amount"`
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		clock:      p.Clock,
		repo:       p.Repo,
		settlement: p.Settlement,
		config:     p.Config,
		workflow:   p.Workflow,
	}
}

// IngestPromptPay records a signed transfer notification and confirms the
// matching pending payment. Redelivered and non-settled events are accepted
// without effect.
func (s *Service) IngestPromptPay(ctx context.Context, payload []byte, headers http.Header) error {
	secret := ""
	if s.config != nil {
		secret = strings.TrimSpace(s.config.Get().PromptPay.WebhookSecret)
	}
	if secret == "" {
		return paymentdomain.ErrWebhookNotConfigured
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := verifySignature(secret, payload, headers.Get(paymentdomain.SignatureHeader), s.clock.Now()); err != nil {
		return err
	}

	var event transferEvent
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&event); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	event.EventID = strings.TrimSpace(event.EventID)
	event.Reference = strings.TrimSpace(event.Reference)
	if event.EventID == "" || event.Reference == "" {
		return paymentdomain.ErrInvalidEvent
	}

	status := strings.ToLower(strings.TrimSpace(event.Status))
	if status != paymentdomain.EventStatusSucceeded {
		s.log.Info("promptpay event ignored",
			zap.String("event_id", event.EventID),
			zap.String("status", status),
		)
		return nil
	}

	amount, err := parseSatang(event.Amount.String())
	if err != nil {
		return paymentdomain.ErrInvalidEvent
	}

	record := &paymentdomain.WebhookEvent{
		EventID:            event.EventID,
		Provider:           paymentdomain.ProviderPromptPay,
		PromptPayReference: event.Reference,
		AmountSatang:       amount,
		Status:             status,
		Payload:            datatypes.JSON(payload),
		ReceivedAt:         s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.log.Info("promptpay event already received", zap.String("event_id", event.EventID))
			return nil
		}
		s.workflow.IncWriteFailure("insert_webhook_event", err)
		return subscriptiondomain.PersistenceError("insert_webhook_event", err)
	}

	_, err = s.settlement.ConfirmTransfer(ctx, settlementdomain.ConfirmTransferRequest{
		EventID:      event.EventID,
		Reference:    event.Reference,
		AmountSatang: amount,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, subscriptiondomain.ErrAlreadyVerified):
		s.log.Info("promptpay transfer already confirmed",
			zap.String("event_id", event.EventID),
			zap.String("reference", event.Reference),
		)
		return nil
	}

	s.log.Warn("promptpay transfer not confirmed",
		zap.String("event_id", event.EventID),
		zap.String("reference", event.Reference),
		zap.Error(err),
	)
	// The provider retries refused deliveries; drop the record so a retry
	// is processed again.
	if delErr := s.repo.DeleteEvent(context.WithoutCancel(ctx), s.db, event.EventID); delErr != nil {
		s.workflow.IncWriteFailure("delete_webhook_event", delErr)
		s.log.Error("failed to release promptpay event",
			zap.String("event_id", event.EventID),
			zap.Error(delErr),
		)
	}
	return err
}

func verifySignature(secret string, payload []byte, header string, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return paymentdomain.ErrInvalidSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return paymentdomain.ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return paymentdomain.ErrInvalidSignature
	}

	expected := Sign(secret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<payload>".
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp + "."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSatang converts a baht amount with at most two decimals to satang.
func parseSatang(value string) (int64, error) {
	whole, fraction, _ := strings.Cut(strings.TrimSpace(value), ".")
	if !isDigits(whole) || len(fraction) > 2 || (fraction != "" && !isDigits(fraction)) {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	baht, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	satang := int64(0)
	if fraction != "" {
		satang, _ = strconv.ParseInt((fraction + "0")[:2], 10, 64)
	}
	return baht*100 + satang, nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
