// Package paymentqr renders PromptPay transfer QR codes for pending VIP payments.
package paymentqr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pattamap/pattamap-vip/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("promptpay_not_configured")

const imageSize = 320

// QRCode is what a payer scans plus the reference they are asked to keep.
type QRCode struct {
	QRCode    string `json:"qr_code"`
	Payload   string `json:"payload"`
	Reference string `json:"reference"`
}

type Generator interface {
	Generate(amount int64, reference string) (QRCode, error)
}

type PromptPayGenerator struct {
	cfg *config.PaymentConfigHolder
	log *zap.Logger
}

type Params struct {
	fx.In

	Config *config.PaymentConfigHolder
	Log    *zap.Logger
}

func NewGenerator(p Params) Generator {
	return &PromptPayGenerator{
		cfg: p.Config,
		log: p.Log.Named("paymentqr"),
	}
}

func (g *PromptPayGenerator) Generate(amount int64, reference string) (QRCode, error) {
	cfg := g.cfg.Get()
	if !cfg.PromptPay.Configured() {
		return QRCode{}, ErrNotConfigured
	}

	ref := sanitize(reference, maxReferenceLen)
	payload, err := BuildPayload(cfg.PromptPay.ID, amount, ref, cfg.PromptPay.MerchantName, cfg.PromptPay.MerchantCity)
	if err != nil {
		return QRCode{}, fmt.Errorf("build promptpay payload: %w", err)
	}

	image, err := renderPNG(payload)
	if err != nil {
		return QRCode{}, fmt.Errorf("render promptpay qr: %w", err)
	}

	g.log.Debug("promptpay qr generated", zap.String("reference", ref), zap.Int64("amount", amount))
	return QRCode{
		QRCode:    image,
		Payload:   payload,
		Reference: ref,
	}, nil
}

func renderPNG(payload string) (string, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	code, err = barcode.Scale(code, imageSize, imageSize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

var Module = fx.Module("paymentqr",
	fx.Provide(NewGenerator),
)
