package modules

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// cssValue strips characters that could terminate a declaration or a rule.
// Module data is user-controlled and lands inside <style>.
func cssValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '\\', '"', '\n', '\r':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// cssURL renders a url() token with the reference quoted. Characters that
// could close the string, the token or the enclosing <style> element are
// percent-encoded.
func cssURL(ref string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(ref) {
		switch {
		case r <= ' ', r == 0x7f, strings.ContainsRune(`<>"'\()`, r):
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return `url("` + b.String() + `")`
}

func px(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + "px"
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func attr(s string) string {
	return html.EscapeString(s)
}

// corner maps a corner name to the two anchoring declarations, offset by
// margin pixels.
func corner(name string, margin float64) string {
	m := px(margin)
	switch name {
	case "top-left":
		return "top:" + m + ";left:" + m + ";"
	case "top-right":
		return "top:" + m + ";right:" + m + ";"
	case "bottom-left":
		return "bottom:" + m + ";left:" + m + ";"
	default:
		return "bottom:" + m + ";right:" + m + ";"
	}
}

var corners = []string{"top-left", "top-right", "bottom-left", "bottom-right"}
