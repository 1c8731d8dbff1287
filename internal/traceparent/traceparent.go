package traceparent

import "strings"

// TraceParent holds the four segments of a W3C trace-context header.
// Segments keep whatever casing the caller sent; only validation is
// case-insensitive.
type TraceParent struct {
	Version    string
	TraceID    string
	SpanID     string
	TraceFlags string
	Sampled    bool
}

// Parse splits a "version-traceid-spanid-traceflags" string into its
// segments. It returns ok=false for any malformed input: wrong segment
// count, wrong segment lengths, or non-hex characters. It never errors;
// an invalid traceparent simply means the request carried no usable
// trace context.
func Parse(s string) (TraceParent, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return TraceParent{}, false
	}

	if len(parts[0]) != 2 || len(parts[1]) != 32 || len(parts[2]) != 16 || len(parts[3]) != 2 {
		return TraceParent{}, false
	}

	for _, part := range parts {
		if !isHex(part) {
			return TraceParent{}, false
		}
	}

	return TraceParent{
		Version:    parts[0],
		TraceID:    parts[1],
		SpanID:     parts[2],
		TraceFlags: parts[3],
		Sampled:    flagsByte(parts[3])&0x01 == 0x01,
	}, true
}

// TraceID is a shortcut for callers that only need the correlation id.
func TraceID(s string) (string, bool) {
	tp, ok := Parse(s)
	if !ok {
		return "", false
	}
	return tp.TraceID, true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// flagsByte decodes a two-character hex segment. Validation has already
// happened, so it only needs to map hex digits to values.
func flagsByte(s string) byte {
	return hexVal(s[0])<<4 | hexVal(s[1])
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
