package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
)

// emailHashSalt is a static, non-secret salt used only to avoid logging raw
// email addresses verbatim; it is not a security boundary.
const emailHashSalt = "pulsearc-calendar-scheduler-email-salt"

// RedactEmail returns a short, stable, non-reversible tag for email suitable
// for scheduler log lines, formatted as "email_hash=<hex>".
func RedactEmail(email string) string {
	h := sha256.New()
	h.Write([]byte(emailHashSalt))
	h.Write([]byte(email))
	digest := h.Sum(nil)
	return "email_hash=" + hex.EncodeToString(digest[:8])
}
