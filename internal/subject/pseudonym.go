package subject

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	id "consentry/pkg/domain"
)

// Pseudonym derives an irreversible replacement identifier from the subject
// id and the pseudonymization instant. No salt is stored, so the original
// identifiers cannot be recovered from the ledger or audit trail.
func Pseudonym(subjectID id.SubjectID, at time.Time) string {
	sum := sha3.Sum256(fmt.Appendf(nil, "%s:%d", subjectID, at.UnixNano()))
	return "anon-" + hex.EncodeToString(sum[:16])
}
