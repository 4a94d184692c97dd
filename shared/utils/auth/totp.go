package utils

import (
	"encoding/base64"

	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

// TOTPSetup is what an administrator needs to enroll an authenticator app
type TOTPSetup struct {
	Secret    string `json:"secret"`
	URL       string `json:"otpauth_url"`
	QRCodePNG string `json:"qr_code_png"`
}

// GenerateTOTP creates a new TOTP secret for account and renders its
// provisioning URL as a base64 PNG QR code
func GenerateTOTP(issuer, account string) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return nil, err
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}

	return &TOTPSetup{
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRCodePNG: base64.StdEncoding.EncodeToString(qrPNG),
	}, nil
}

// ValidateTOTP checks a six digit code against secret for the current period
func ValidateTOTP(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
