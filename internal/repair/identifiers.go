package repair

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// CanonicalUUIDPattern matches the 8-4-4-4-12 hexadecimal form, case-insensitive.
const CanonicalUUIDPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

var canonicalUUID = regexp.MustCompile(CanonicalUUIDPattern)

// legacyIDNamespace scopes the identifiers derived by DeriveUUID.
var legacyIDNamespace = uuid.MustParse("6f1c2b8e-3d4a-5e6f-8a9b-0c1d2e3f4a5b")

// IsCanonicalUUID reports whether v is a string in canonical UUID form.
// Non-string values (ObjectIDs, binary UUIDs, nil) are never canonical.
func IsCanonicalUUID(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return canonicalUUID.MatchString(s)
}

// GenerateUUID returns a new random (version 4) UUID in lower-case canonical form.
func GenerateUUID() string {
	return uuid.NewString()
}

// DeriveUUID maps a malformed identifier to a stable name-based (version 5)
// UUID. The same stored value always yields the same replacement, so a rerun
// after an interrupted replacement targets the document already written.
func DeriveUUID(original any) string {
	key := fmt.Sprintf("%T:%v", original, original)
	return uuid.NewSHA1(legacyIDNamespace, []byte(key)).String()
}

// describeID renders a raw identifier for log lines.
func describeID(v any) string {
	if v == nil {
		return "<missing>"
	}
	return fmt.Sprint(v)
}
