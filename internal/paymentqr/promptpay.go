package paymentqr

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

const (
	promptPayAID = "A000000677010111"

	tagPayloadFormat   = "00"
	tagInitiation      = "01"
	tagMerchantAccount = "29"
	tagCurrency        = "53"
	tagAmount          = "54"
	tagCountry         = "58"
	tagMerchantName    = "59"
	tagMerchantCity    = "60"
	tagAdditionalData  = "62"
	tagCRC             = "63"

	subTagAID         = "00"
	subTagMobile      = "01"
	subTagNationalID  = "02"
	subTagEWallet     = "03"
	subTagReferenceID = "05"

	initiationDynamic = "12"
	currencyTHB       = "764"
	countryTH         = "TH"

	maxReferenceLen = 25
	maxMerchantLen  = 25
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

func field(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// proxyField encodes the PromptPay target: a mobile number, a 13 digit
// national or tax id, or a 15 digit e-wallet id.
func proxyField(id string) (string, error) {
	digits := onlyDigits(id)
	switch {
	case len(digits) == 15:
		return field(subTagEWallet, digits), nil
	case len(digits) == 13:
		return field(subTagNationalID, digits), nil
	case len(digits) == 11 && strings.HasPrefix(digits, "66"):
		return field(subTagMobile, "00"+digits), nil
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return field(subTagMobile, "0066"+digits[1:]), nil
	default:
		return "", fmt.Errorf("unsupported promptpay id length %d", len(digits))
	}
}

// BuildPayload returns the EMVCo merchant-presented payload for a fixed amount.
func BuildPayload(promptPayID string, amount int64, reference, merchantName, merchantCity string) (string, error) {
	proxy, err := proxyField(promptPayID)
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	var b strings.Builder
	b.WriteString(field(tagPayloadFormat, "01"))
	b.WriteString(field(tagInitiation, initiationDynamic))
	b.WriteString(field(tagMerchantAccount, field(subTagAID, promptPayAID)+proxy))
	b.WriteString(field(tagCurrency, currencyTHB))
	b.WriteString(field(tagAmount, fmt.Sprintf("%d.00", amount)))
	b.WriteString(field(tagCountry, countryTH))
	if name := sanitize(merchantName, maxMerchantLen); name != "" {
		b.WriteString(field(tagMerchantName, name))
	}
	if city := sanitize(merchantCity, maxMerchantLen); city != "" {
		b.WriteString(field(tagMerchantCity, city))
	}
	if ref := sanitize(reference, maxReferenceLen); ref != "" {
		b.WriteString(field(tagAdditionalData, field(subTagReferenceID, ref)))
	}

	// the checksum covers its own tag and length
	b.WriteString(tagCRC + "04")
	b.WriteString(checksum(b.String()))
	return b.String(), nil
}

func checksum(data string) string {
	return fmt.Sprintf("%04X", crc16.Checksum([]byte(data), crcTable))
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sanitize(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r < 0x20 || r > 0x7e {
			continue
		}
		b.WriteRune(r)
		if b.Len() == max {
			break
		}
	}
	return b.String()
}
