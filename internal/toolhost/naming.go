package toolhost

import "strings"

const nameSep = "--"

// NamespacedName returns a namespaced tool name: "serverkey--toolname". The
// server key is sanitized to lowercase alphanumeric and hyphens so the name
// survives every vendor's tool-name restrictions.
func NamespacedName(serverKey, toolName string) string {
	return sanitizeKey(serverKey) + nameSep + toolName
}

// ParseNamespacedName splits a namespaced tool name into server and tool
// parts. Returns ("", "", false) for names without a namespace.
func ParseNamespacedName(name string) (server, tool string, ok bool) {
	idx := strings.Index(name, nameSep)
	if idx <= 0 {
		return "", "", false
	}
	server = name[:idx]
	tool = name[idx+len(nameSep):]
	if tool == "" {
		return "", "", false
	}
	return server, tool, true
}

// sanitizeKey lowercases and replaces anything outside [a-z0-9_] with a
// hyphen. Hyphen runs that would collide with the separator collapse to one.
func sanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	prevHyphen := false
	for _, r := range strings.ToLower(key) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
