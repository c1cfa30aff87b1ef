// Package email derives presentation details from email addresses.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds a name from the local part of address, so
// "grace.hopper+portal@example.com" becomes "Grace Hopper". It returns ""
// when the local part has no usable characters.
func DisplayName(address string) string {
	local := strings.TrimSpace(address)
	if at := strings.LastIndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
