package validation

import (
	"fmt"
	"regexp"
)

var qrCodeRegex = regexp.MustCompile(`^EQ-[A-Z0-9]{4,16}$`)

// ValidateQRCode validates the printed equipment QR code format, e.g. "EQ-1234".
func ValidateQRCode(code string) error {
	if !qrCodeRegex.MatchString(code) {
		return fmt.Errorf("QR code must match EQ- followed by 4-16 uppercase letters or digits")
	}
	return nil
}
