package security

import "testing"

func TestNewSessionToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewSessionToken()
		if err != nil {
			t.Fatalf("NewSessionToken: %v", err)
		}
		if tok == "" {
			t.Fatal("token should not be empty")
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %s", tok)
		}
		seen[tok] = true
	}
}

func TestDigestToken_Deterministic(t *testing.T) {
	if DigestToken("abc") != DigestToken("abc") {
		t.Error("digest of the same token should be stable")
	}
	if DigestToken("abc") == DigestToken("abd") {
		t.Error("different tokens should have different digests")
	}
	if DigestToken("abc") == "abc" {
		t.Error("digest should not equal the raw token")
	}
}

func TestTokenDigestEqual(t *testing.T) {
	tok, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	digest := DigestToken(tok)
	if !TokenDigestEqual(tok, digest) {
		t.Error("token should match its own digest")
	}
	if TokenDigestEqual("guessed-token", digest) {
		t.Error("wrong token should not match the digest")
	}
}

func TestDeviceFingerprint(t *testing.T) {
	a := DeviceFingerprint("10.0.0.1:5544", "pos-terminal/2.1")
	b := DeviceFingerprint("10.0.0.1:5544 ", " pos-terminal/2.1")
	if a != b {
		t.Error("fingerprint should ignore surrounding whitespace")
	}
	if a == DeviceFingerprint("10.0.0.2:5544", "pos-terminal/2.1") {
		t.Error("different origins should yield different fingerprints")
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(a))
	}
}
