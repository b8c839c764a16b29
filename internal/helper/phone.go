package helper

import (
	"fmt"

	"go.mau.fi/whatsmeow/types"
)

// NormalizeMSISDN converts a raw phone cell to international digits-only
// form. Supports inputs like "0812-3456xxx", "+62 812 3456xxx",
// "62812xxx". countryCode replaces a leading local zero. The result is
// stable under re-normalization.
func NormalizeMSISDN(phone, countryCode string) (string, error) {
	cleaned := ""
	for _, char := range phone {
		if char >= '0' && char <= '9' {
			cleaned += string(char)
		}
	}

	if len(cleaned) > 0 && cleaned[0] == '0' {
		cleaned = countryCode + cleaned[1:]
	}

	if len(cleaned) < 10 {
		return "", fmt.Errorf("invalid phone number: %s", phone)
	}

	return cleaned, nil
}

// FormatPhoneNumber converts a phone number to WhatsApp JID form.
func FormatPhoneNumber(phone, countryCode string) (types.JID, error) {
	msisdn, err := NormalizeMSISDN(phone, countryCode)
	if err != nil {
		return types.JID{}, err
	}

	jid := types.JID{
		User:   msisdn,
		Server: types.DefaultUserServer, // s.whatsapp.net
	}

	return jid, nil
}
