// Package auth implements password storage and verification for the three
// credential formats found in the account store:
//
//   - Salted: "$SALT$<base64 salt>$<sha256 hex>", the canonical secure form
//   - LegacyDigest: 32 hex characters, an unsalted MD5 of the plaintext kept
//     for backward compatibility with pre-existing accounts
//   - PlainText: anything else, tolerated only so it can be upgraded on login
//
// The wire protocol has two login paths. The legacy path submits an MD5
// digest computed client-side, so the server never sees the plaintext and can
// neither verify a Salted credential nor upgrade past LegacyDigest on that
// path. The salted path submits the real plaintext and can verify and upgrade
// every format.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Format identifies how a stored password string is encoded.
type Format int

const (
	FormatPlainText Format = iota
	FormatLegacyDigest
	FormatSalted
)

func (f Format) String() string {
	switch f {
	case FormatSalted:
		return "salted"
	case FormatLegacyDigest:
		return "legacy-digest"
	default:
		return "plaintext"
	}
}

const (
	saltedPrefix = "$SALT$"
	saltLength   = 16
)

// Upgrade describes a stored-credential rewrite that should follow a
// successful login. The zero value means "no upgrade".
type Upgrade struct {
	// NewStored is the replacement stored string.
	NewStored string

	// OK reports whether an upgrade is warranted.
	OK bool
}

// Verifier implements format detection, hashing and comparison for stored
// credentials. It is stateless and safe for concurrent use.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// DetectFormat classifies a stored password string. Detection order is
// Salted, then LegacyDigest, then PlainText; a 32-hex-character string can
// never be misread as Salted because of the "$SALT$" prefix.
func (v *Verifier) DetectFormat(stored string) Format {
	if isSalted(stored) {
		return FormatSalted
	}
	if isLegacyDigest(stored) {
		return FormatLegacyDigest
	}
	return FormatPlainText
}

// isSalted reports whether stored has the canonical salted shape: the
// "$SALT$" prefix and exactly four "$"-delimited segments
// ("", "SALT", salt, digest).
func isSalted(stored string) bool {
	return strings.HasPrefix(stored, saltedPrefix) &&
		len(strings.Split(stored, "$")) == 4
}

// isLegacyDigest reports whether stored is exactly 32 hex characters.
func isLegacyDigest(stored string) bool {
	if len(stored) != 32 {
		return false
	}
	for i := 0; i < len(stored); i++ {
		c := stored[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// CreateSalted hashes a plaintext password with a fresh random salt and
// returns the canonical "$SALT$<salt>$<digest>" encoding. Two calls on the
// same plaintext produce different outputs.
func (v *Verifier) CreateSalted(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("create salted password: empty plaintext")
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	saltB64 := base64.StdEncoding.EncodeToString(salt)
	return saltedPrefix + saltB64 + "$" + saltedDigest(plaintext, salt), nil
}

// saltedDigest computes hex(SHA-256(plaintext || salt)).
func saltedDigest(plaintext string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(plaintext))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))
}

// LegacyDigest computes the unsalted MD5 digest of a plaintext, lowercase
// hex. Retained only for compatibility with the legacy login path.
func LegacyDigest(plaintext string) string {
	sum := md5.Sum([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify checks a candidate plaintext against a stored credential of any
// format. It fails closed: malformed stored values (for example a salt that
// is not valid base64) yield false, never an error or a panic.
func (v *Verifier) Verify(plaintext, stored string) bool {
	if plaintext == "" || stored == "" {
		return false
	}

	switch v.DetectFormat(stored) {
	case FormatSalted:
		return v.verifySalted(plaintext, stored)
	case FormatLegacyDigest:
		return hexEqualFold(LegacyDigest(plaintext), stored)
	default:
		return constantTimeEquals(plaintext, stored)
	}
}

func (v *Verifier) verifySalted(plaintext, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}

	return constantTimeEquals(saltedDigest(plaintext, salt), parts[3])
}

// VerifyDigestLogin checks a client-computed legacy digest against a stored
// credential. This is the unsalted wire path: the server only ever receives
// the MD5 digest, never the plaintext.
//
//   - Salted stored value: always false. The salted digest cannot be
//     recomputed without the plaintext, an acknowledged protocol limitation.
//   - LegacyDigest stored value: case-insensitive hex comparison.
//   - PlainText stored value: the stored plaintext is hashed with the legacy
//     digest and compared; on success the returned Upgrade carries the
//     submitted digest so the caller can replace the cleartext row.
func (v *Verifier) VerifyDigestLogin(candidateDigest, stored string) (bool, Upgrade) {
	if candidateDigest == "" || stored == "" {
		return false, Upgrade{}
	}

	switch v.DetectFormat(stored) {
	case FormatSalted:
		return false, Upgrade{}
	case FormatLegacyDigest:
		return hexEqualFold(candidateDigest, stored), Upgrade{}
	default:
		if hexEqualFold(LegacyDigest(stored), candidateDigest) {
			return true, Upgrade{NewStored: strings.ToLower(candidateDigest), OK: true}
		}
		return false, Upgrade{}
	}
}

// VerifyPlainLogin checks a plaintext password against a stored credential.
// This is the salted wire path, intended for transport-secured clients; it is
// the only path able to verify Salted credentials.
//
// On success, if the stored format is anything weaker than Salted, the
// returned Upgrade carries a freshly salted encoding of the plaintext.
func (v *Verifier) VerifyPlainLogin(plaintext, stored string) (bool, Upgrade) {
	if !v.Verify(plaintext, stored) {
		return false, Upgrade{}
	}

	if v.DetectFormat(stored) == FormatSalted {
		return true, Upgrade{}
	}

	salted, err := v.CreateSalted(plaintext)
	if err != nil {
		// Login still succeeds; the upgrade is best-effort.
		return true, Upgrade{}
	}
	return true, Upgrade{NewStored: salted, OK: true}
}

// hexEqualFold compares two hex strings case-insensitively over their full
// length. Both operands are digests here, so a leaked mismatch index reveals
// nothing about the plaintext, but the comparison still never short-circuits
// on content.
func hexEqualFold(a, b string) bool {
	return constantTimeEquals(strings.ToLower(a), strings.ToLower(b))
}

// constantTimeEquals compares two strings without branching on content.
// Length is checked first; unequal lengths return false immediately.
func constantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
