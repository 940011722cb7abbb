package governor

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services"
)

// signReceipt produces an HS256 JWT over the receipt claims so callers can
// verify the settlement offline. Returns an empty signature when no signing
// key is configured.
func (s *Service) signReceipt(receipt *models.LeaseReceipt) (string, error) {
	if len(s.options.ReceiptSigningKey) == 0 {
		return "", nil
	}

	claims := jwt.MapClaims{
		"lease_id":             receipt.LeaseID,
		"policy_hash":          receipt.PolicyHash,
		"actual_prompt_tokens": receipt.ActualPromptTokens,
		"actual_output_tokens": receipt.ActualOutputTokens,
		"actual_cost_cents":    receipt.ActualCostCents,
		"outcome":              string(receipt.Outcome),
		"audit_entry_hash":     receipt.AuditEntryHash,
		"iat":                  receipt.Timestamp.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.options.ReceiptSigningKey)
	if err != nil {
		return "", services.WrapInternal("failed to sign receipt", err)
	}
	return signed, nil
}

// VerifyReceipt checks a receipt signature against the configured key and
// returns the embedded claims.
func (s *Service) VerifyReceipt(signature string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(signature, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.options.ReceiptSigningKey, nil
	})
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeUnauthorized, "receipt signature rejected", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, services.WrapError(services.ErrorTypeUnauthorized, "invalid receipt token", nil)
	}
	return claims, nil
}
