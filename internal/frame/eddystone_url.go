package frame

import (
	"fmt"
	"strings"
)

// Eddystone-URL frames carry the URL compressed: the first byte selects
// a scheme prefix, and single bytes inside the remainder expand to
// common TLD suffixes. Tables per the Eddystone-URL specification.

var urlSchemePrefixes = []string{
	"http://www.",
	"https://www.",
	"http://",
	"https://",
}

var urlSuffixExpansions = []string{
	".com/",
	".org/",
	".edu/",
	".net/",
	".info/",
	".biz/",
	".gov/",
	".com",
	".org",
	".edu",
	".net",
	".info",
	".biz",
	".gov",
}

// DecompressURL reconstructs the literal URL from a compressed
// Eddystone-URL identifier field.
func DecompressURL(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty eddystone url field")
	}

	scheme := int(data[0])
	if scheme >= len(urlSchemePrefixes) {
		return "", fmt.Errorf("unknown url scheme prefix code 0x%02x", data[0])
	}

	var sb strings.Builder
	sb.WriteString(urlSchemePrefixes[scheme])

	for _, b := range data[1:] {
		switch {
		case int(b) < len(urlSuffixExpansions):
			sb.WriteString(urlSuffixExpansions[b])
		case b < 0x20 || b > 0x7e:
			// Reserved or non-printable codes carry no expansion.
			continue
		default:
			sb.WriteByte(b)
		}
	}

	return sb.String(), nil
}

// CompressURL is the inverse of DecompressURL. The longest matching
// scheme prefix is encoded first, then every suffix-table occurrence in
// the remainder collapses to its single-byte code.
func CompressURL(url string) ([]byte, error) {
	scheme := -1
	for i, prefix := range urlSchemePrefixes {
		if strings.HasPrefix(url, prefix) {
			if scheme < 0 || len(prefix) > len(urlSchemePrefixes[scheme]) {
				scheme = i
			}
		}
	}
	if scheme < 0 {
		return nil, fmt.Errorf("url %q has no compressible scheme prefix", url)
	}

	out := []byte{byte(scheme)}
	rest := url[len(urlSchemePrefixes[scheme]):]

	for len(rest) > 0 {
		code := -1
		for i, suffix := range urlSuffixExpansions {
			if strings.HasPrefix(rest, suffix) {
				if code < 0 || len(suffix) > len(urlSuffixExpansions[code]) {
					code = i
				}
			}
		}
		if code >= 0 {
			out = append(out, byte(code))
			rest = rest[len(urlSuffixExpansions[code]):]
			continue
		}
		out = append(out, rest[0])
		rest = rest[1:]
	}

	return out, nil
}
