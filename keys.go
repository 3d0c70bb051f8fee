package rom

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Key layout, for reserved prefix P and namespace N:
//
//	P|N:keys          set of live primary keys
//	P|N:data:K        record hash
//	P|N:idx:F:T       index set of field F, token T
//	P|N:next          last allocated primary key
//	P|N:tmp:UUID      short-lived query intersections
//
// All keys of a model share NamespacePrefix(P, N), which bulk deletion relies on.

// idHashField is the reserved record hash field holding the primary key. It
// keeps the hash in existence when every field is Null.
const idHashField = "_id"

func NamespacePrefix(prefix, ns string) string {
	return prefix + "|" + ns + ":"
}

func RecordKey(prefix, ns string, pk int64) string {
	return NamespacePrefix(prefix, ns) + "data:" + strconv.FormatInt(pk, 10)
}

func AllKeysSetKey(prefix, ns string) string {
	return NamespacePrefix(prefix, ns) + "keys"
}

func IndexSetKey(prefix, ns, field, token string) string {
	return NamespacePrefix(prefix, ns) + "idx:" + field + ":" + token
}

func NextIDKey(prefix, ns string) string {
	return NamespacePrefix(prefix, ns) + "next"
}

func tempKey(prefix, ns string) string {
	return NamespacePrefix(prefix, ns) + "tmp:" + uuid.NewString()
}

// ParseNamespace extracts the namespace from any key under prefix.
func ParseNamespace(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix+"|")
	if !ok {
		return "", false
	}
	ns, _, ok := strings.Cut(rest, ":")
	if !ok {
		return "", false
	}
	return ns, true
}

func validName(s string) bool {
	return s != "" && !strings.ContainsAny(s, ":|")
}
