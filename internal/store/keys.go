package store

import "sync"

// Key layout.
//
//	meta:profiles                   registered profiles
//	meta:active_profile             name of the active profile
//	profile:<ns>:copies             copies, insertion ordered
//	profile:<ns>:titles             titles
//	profile:<ns>:editions           custom editions
//	profile:<ns>:last_backup        last successful backup
//	profile:<ns>:safety_backup      safety snapshot taken before restore
const (
	keyProfiles      = "meta:profiles"
	keyActiveProfile = "meta:active_profile"

	profilePrefix = "profile:"

	suffixCopies       = ":copies"
	suffixTitles       = ":titles"
	suffixEditions     = ":editions"
	suffixLastBackup   = ":last_backup"
	suffixSafetyBackup = ":safety_backup"
)

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 128)
	},
}

// buildKey concatenates parts into a pooled buffer.
// Callers that only read with the key should releaseKey it afterwards; keys handed to
// txn.Set must not be released before the transaction commits.
func buildKey(parts ...string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// profileKey builds profile:<ns><suffix>.
func profileKey(ns, suffix string) []byte {
	return buildKey(profilePrefix, ns, suffix)
}

// profileScope is the prefix shared by every key of a namespace.
func profileScope(ns string) []byte {
	return []byte(profilePrefix + ns + ":")
}

// releaseKey returns a key buffer to the pool.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0]) //nolint:staticcheck // slice header allocation is fine here
	}
}
