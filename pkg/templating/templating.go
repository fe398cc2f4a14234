// Package templating masks volatile tokens (addresses, identifiers, numbers)
// out of log lines so that near-duplicate messages collapse onto an
// identical templated form. Patterns are ordered most-specific to
// most-general to avoid over-masking.
package templating

import "regexp"

var (
	macAddress     = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`)
	ipv4Address    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	ipv6Address    = regexp.MustCompile(`\b(?:[A-Fa-f0-9]{1,4}:){2,}[A-Fa-f0-9]{1,4}\b`)
	uuidPattern    = regexp.MustCompile(`\b[0-9a-fA-F]{8}(?:-[0-9a-fA-F]{4}){3}-[0-9a-fA-F]{12}\b`)
	hexLiteral     = regexp.MustCompile(`\b0x[0-9A-Fa-f]+\b`)
	versionPattern = regexp.MustCompile(`\b\d+(?:\.\d+){1,3}\b`)
	hashNumber     = regexp.MustCompile(`#\d+`)
	number         = regexp.MustCompile(`\b[-+]?\d+(?:\.\d+)?\b`)
	whitespace     = regexp.MustCompile(`\s+`)
)

const sentinel = "<*>"

// Content masks IPv4/IPv6/MAC/UUID/hex/version/number tokens with a sentinel
// and collapses whitespace. Two inputs differing only in masked tokens
// always produce the same output.
func Content(message string) string {
	t := message
	t = macAddress.ReplaceAllString(t, sentinel)
	t = ipv4Address.ReplaceAllString(t, sentinel)
	t = ipv6Address.ReplaceAllString(t, sentinel)
	t = uuidPattern.ReplaceAllString(t, sentinel)
	t = hexLiteral.ReplaceAllString(t, sentinel)
	t = versionPattern.ReplaceAllString(t, sentinel)
	t = hashNumber.ReplaceAllString(t, "#"+sentinel)
	t = number.ReplaceAllString(t, sentinel)
	t = whitespace.ReplaceAllString(t, " ")
	return trimSpace(t)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

// Line builds a full templated line of the form "component[pid]: <content>",
// omitting the bracketed pid segment when pid is empty.
func Line(component, pid, content string) string {
	body := Content(content)
	pidPart := ""
	if pid != "" {
		pidPart = "[" + pid + "]"
	}
	sep := ""
	if body != "" {
		sep = ": "
	}
	return component + pidPart + sep + body
}
