package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const licenseKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	licenseKeyPattern = regexp.MustCompile(`^[A-Z0-9]{4}(?:-[A-Z0-9]{4}){3}$`)
	licenseKeyInText  = regexp.MustCompile(`[A-Z0-9]{4}(?:-[A-Z0-9]{4}){3}`)
)

// NormalizeLicenseKey trims surrounding whitespace and uppercases.
func NormalizeLicenseKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidLicenseKey reports whether an already normalized key is XXXX-XXXX-XXXX-XXXX over [A-Z0-9].
func ValidLicenseKey(normalized string) bool {
	return licenseKeyPattern.MatchString(normalized)
}

// HashLicenseKey returns the hex SHA-256 of the normalized key. Raw keys are never stored.
func HashLicenseKey(raw string) string {
	sum := sha256.Sum256([]byte(NormalizeLicenseKey(raw)))
	return hex.EncodeToString(sum[:])
}

// ExtractLicenseKey decodes data as UTF-8 (dropping invalid sequences), uppercases it and
// returns the leftmost substring in key format, even when other characters touch it.
func ExtractLicenseKey(data []byte) (string, bool) {
	text := strings.ToUpper(strings.ToValidUTF8(string(data), ""))
	match := licenseKeyInText.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}

// GenerateLicenseKey returns a fresh random key in canonical form.
func GenerateLicenseKey() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(licenseKeyAlphabet)))
	for group := 0; group < 4; group++ {
		if group > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < 4; i++ {
			n, err := rand.Int(rand.Reader, limit)
			if err != nil {
				return "", fmt.Errorf("generate license key: %w", err)
			}
			b.WriteByte(licenseKeyAlphabet[n.Int64()])
		}
	}
	return b.String(), nil
}
