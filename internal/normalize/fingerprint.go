package normalize

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/jobsift/jobsift/internal/model"
)

// fieldSeparator joins fingerprint inputs. Unit separator cannot appear in a
// normalized field, so "ab"+"c" and "a"+"bc" never collide.
const fieldSeparator = "\x1f"

// Fingerprint derives the content identity of a posting: an md5 hex digest
// over (title, company, location). Description and URL are deliberately
// excluded — minor description drift between re-scrapes of the same job must
// not create a new identity. Not a security boundary, just a stable key.
func Fingerprint(p model.NormalizedPosting) string {
	sum := md5.Sum([]byte(p.Title + fieldSeparator + p.Company + fieldSeparator + p.Location))
	return hex.EncodeToString(sum[:])
}
