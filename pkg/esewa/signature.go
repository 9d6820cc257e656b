package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// SignedFieldNames lists the fields covered by the request signature, in the
// exact order the gateway expects them concatenated.
const SignedFieldNames = "total_amount,transaction_uuid,product_code"

// Signer computes the keyed signature the gateway requires on outbound
// payment requests.
type Signer struct {
	secret []byte
}

// NewSigner builds a Signer from the gateway shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the base64-encoded HMAC-SHA256 over the canonical message
// "total_amount=<amt>,transaction_uuid=<uuid>,product_code=<code>".
func (s *Signer) Sign(totalAmount, transactionUUID, productCode string) string {
	message := fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s",
		totalAmount, transactionUUID, productCode)
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the provided signature matches the one this Signer
// would compute over the same fields. Comparison is constant-time.
func (s *Signer) Verify(totalAmount, transactionUUID, productCode, signature string) bool {
	expected := s.Sign(totalAmount, transactionUUID, productCode)
	return hmac.Equal([]byte(expected), []byte(signature))
}
