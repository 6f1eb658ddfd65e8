package envutil

import "os"

// Prefix is the optional namespace for environment variables.
const Prefix = "UNIMAK_"

// Get retrieves an environment variable with automatic UNIMAK_ prefix fallback.
// It checks for the environment variable in this order:
// 1. Exact key as provided
// 2. Key with UNIMAK_ prefix
// 3. Returns fallback if neither exists
func Get(key, fallback string) string {
	if value, ok := Lookup(key); ok {
		return value
	}
	return fallback
}

// Lookup is Get without a fallback. The bool reports whether either form of
// the variable was set.
func Lookup(key string) (string, bool) {
	if value, exists := os.LookupEnv(key); exists {
		return value, true
	}

	if len(key) < len(Prefix) || key[:len(Prefix)] != Prefix {
		if value, exists := os.LookupEnv(Prefix + key); exists {
			return value, true
		}
	}

	return "", false
}
