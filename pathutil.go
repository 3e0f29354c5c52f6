package ragsync

import (
	"net/url"
	"strings"
)

// NormalizeRelPath converts backslashes to forward slashes and strips any
// leading "./" segments so path aliases compare equal across platforms and
// archive layouts.
func NormalizeRelPath(value string) string {
	value = strings.ReplaceAll(value, "\\", "/")
	for strings.HasPrefix(value, "./") {
		value = value[2:]
	}
	return value
}

// IsRelativeURL reports whether a markdown link target is a relative path
// that can be rewritten to a public URL. Absolute URLs, data/file URIs,
// root-relative paths, and fragments are left alone.
func IsRelativeURL(raw string) bool {
	lowered := strings.ToLower(raw)
	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		return false
	}
	if strings.HasPrefix(lowered, "data:") || strings.HasPrefix(lowered, "file:") {
		return false
	}
	if strings.HasPrefix(lowered, "/") || strings.HasPrefix(lowered, "#") {
		return false
	}
	return true
}

// BuildPublicURL joins the public base URL, path prefix, and relative path
// into a percent-encoded URL. Existing percent escapes are preserved to
// avoid double-encoding.
func BuildPublicURL(baseURL, prefix, relPath string) string {
	if baseURL != "" {
		baseURL = strings.TrimRight(baseURL, "/") + "/"
	}
	prefix = strings.Trim(prefix, "/")
	relPath = strings.TrimLeft(relPath, "/")

	parts := make([]string, 0, 2)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if relPath != "" {
		parts = append(parts, relPath)
	}
	return baseURL + escapePath(strings.Join(parts, "/"), "/-_.~%")
}

// EncodeImageURL percent-encodes the path component of an image URL,
// decoding first so already-encoded URLs are not double-encoded.
func EncodeImageURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	decoded := u.Path
	if unescaped, err := url.PathUnescape(u.EscapedPath()); err == nil {
		decoded = unescaped
	}
	u.Path = decoded
	u.RawPath = escapePath(decoded, "/")
	return u.String()
}

// FigurePrefix derives the stable per-document figure-id prefix from the
// source file's relative path.
func FigurePrefix(relPath string) string {
	if relPath == "" {
		return "FIG"
	}
	digest := DigestString(relPath)
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return "FIG-" + digest
}

// escapePath percent-encodes every byte except unreserved characters and
// those listed in safe.
func escapePath(s, safe string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}
