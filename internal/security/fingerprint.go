package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DeviceFingerprint derives a stable, non-reversible identifier for a client
// device from its network origin and client signature (e.g. user agent).
// The raw inputs are not recoverable from the result.
func DeviceFingerprint(remoteAddr, clientSignature string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	clientSignature = strings.TrimSpace(clientSignature)
	h := sha256.Sum256([]byte(remoteAddr + "\x00" + clientSignature))
	return hex.EncodeToString(h[:16])
}
