package cache

import (
	"sort"
	"strings"
)

// Cache key namespaces. Writers invalidate whole families with
// `namespace + ":*"` patterns, so every key must start with one of these.
const (
	NamespaceArticles = "articles"
	NamespaceSources  = "sources"
	NamespacePopular  = "popular"
)

// BuildKey derives a deterministic cache key from normalized query parameters.
// Parameters are emitted in sorted order so that differing parameter order on
// the wire cannot produce distinct keys for the same logical query.
func BuildKey(namespace string, params map[string]string) string {
	if len(params) == 0 {
		return namespace + ":all"
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(namespace)
	builder.WriteByte(':')
	for i, key := range keys {
		if i > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(params[key])
	}
	return builder.String()
}

// Namespace returns the resource family prefix of a cache key.
func Namespace(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
