// Package cache is the only way the service touches cache storage. It derives
// keys from query shape, stamps values with a tier, swallows backend failures
// and offers a read-through helper for the service's read paths.
package cache

import (
	"net/url"
	"strings"
)

const keySeparator = "?"

// KeyFor derives a cache key from a namespace and query parameters. Parameters
// are sorted by name and empty values are dropped, so logically identical
// queries map to one key regardless of argument order.
func KeyFor(namespace string, params map[string]string) string {
	vals := make(url.Values, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		vals.Set(k, v)
	}
	if len(vals) == 0 {
		return namespace
	}
	return namespace + keySeparator + vals.Encode()
}

// NamespaceOf returns the namespace a key was derived from.
func NamespaceOf(key string) string {
	ns, _, _ := strings.Cut(key, keySeparator)
	return ns
}
