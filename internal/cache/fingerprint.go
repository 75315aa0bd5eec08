package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint derives a bounded-size cache key from a datasource id, a SQL
// text, and a parameter map. The SQL is trimmed and lower-cased before
// hashing so whitespace and case differences collapse to the same key;
// parameters are serialized as key=value pairs sorted by key so insertion
// order never matters.
func Fingerprint(datasourceID, sqlText string, params map[string]string) string {
	return datasourceID + ":" + hashSQL(sqlText) + ":" + hashParams(params)
}

func hashSQL(sqlText string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(sqlText))))
	return hex.EncodeToString(sum[:])
}

func hashParams(params map[string]string) string {
	if len(params) == 0 {
		return emptyParamsHash
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%s", k, params[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

var emptyParamsHash = func() string {
	sum := sha256.Sum256(nil)
	return hex.EncodeToString(sum[:])
}()
