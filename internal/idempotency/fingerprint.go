package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// fingerprintDomain versions the fingerprint algorithm. Changing it makes
// every existing record mismatch, so bump only with a migration.
const fingerprintDomain = "ticketd/%s/v1"

// Fingerprint is a stable signature of an activity's input parameters.
type Fingerprint string

// FingerprintOf computes SHA256(domain || 0x00 || json(input)).
//
// encoding/json emits struct fields in declaration order and sorts map keys,
// so identical inputs always produce identical bytes.
func FingerprintOf(activity string, input any) (Fingerprint, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshaling %s input: %w", activity, err)
	}

	h := sha256.New()
	h.Write([]byte(fmt.Sprintf(fingerprintDomain, activity)))
	h.Write([]byte{0x00})
	h.Write(payload)
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}
