// Package parsing applies OS-specific regexes to raw log lines and infers
// the OS/domain a line belongs to from its source/kind string when no
// regex match is available.
package parsing

import (
	"regexp"
	"strings"

	"github.com/rhordoan/logpulse/pkg/models"
)

const (
	OSLinux   = "linux"
	OSMacOS   = "macos"
	OSWindows = "windows"
	OSNetwork = "network"
)

// linuxRegex matches "Jun 14 15:16:01 host component[PID]: message".
var linuxRegex = regexp.MustCompile(
	`^(?P<month>\w{3})\s+(?P<date>\d{1,2})\s+(?P<time>\d{2}:\d{2}:\d{2})\s+` +
		`(?P<host>\S+)\s+` +
		`(?P<component>[^\[]+?)\[(?P<pid>\d+)\]:\s+` +
		`(?P<content>.*)$`,
)

// macosRegex matches the same shape as linuxRegex; macOS syslog format
// differs only in field naming ("user" instead of "host").
var macosRegex = regexp.MustCompile(
	`^(?P<month>\w{3})\s+(?P<date>\d{1,2})\s+(?P<time>\d{2}:\d{2}:\d{2})\s+` +
		`(?P<user>\S+)\s+` +
		`(?P<component>[^\[]+?)\[(?P<pid>\d+)\]:\s+` +
		`(?P<content>.*)$`,
)

// windowsRegex matches CBS-style "2016-09-28 04:30:30, Info  CBS  message".
var windowsRegex = regexp.MustCompile(
	`^(?P<date>\d{4}-\d{2}-\d{2})\s+(?P<time>\d{2}:\d{2}:\d{2}),\s+` +
		`(?P<level>\w+)\s+` +
		`(?P<component>\S+)\s+` +
		`(?P<content>.*)$`,
)

var logLevel = regexp.MustCompile(`(?i)\b(INFO|DEBUG|WARN|WARNING|ERROR|CRITICAL|ALERT)\b`)

// InferOS maps a LogRecord's kind and source onto an OS/domain bucket per
// the substring rules: "linux.log"->linux, "mac.log"->macos,
// "windows"->windows; "thousandeyes|catalyst|snmp|dcim_http"->network;
// "scom|squaredup"->windows.
func InferOS(kind, source string) string {
	k := strings.ToLower(kind)
	s := strings.ToLower(source)

	switch {
	case strings.Contains(k, "linux.log") || strings.Contains(s, "linux.log"):
		return OSLinux
	case strings.Contains(k, "mac.log") || strings.Contains(s, "mac.log"):
		return OSMacOS
	case strings.Contains(k, "windows") || strings.Contains(s, "windows"):
		return OSWindows
	}

	for _, hint := range []string{"thousandeyes", "catalyst", "snmp", "dcim_http"} {
		if strings.Contains(k, hint) || strings.Contains(s, hint) {
			return OSNetwork
		}
	}
	for _, hint := range []string{"scom", "squaredup"} {
		if strings.Contains(k, hint) || strings.Contains(s, hint) {
			return OSWindows
		}
	}
	return OSLinux
}

// Parse applies the regex registered for os to line, falling back to the
// {component:"unknown", content:line} shape when nothing matches.
func Parse(os, line string) models.ParsedLog {
	trimmed := strings.TrimRight(line, "\n")

	switch os {
	case OSLinux:
		if p, ok := parseNamed(linuxRegex, trimmed); ok {
			return models.ParsedLog{
				OS:        OSLinux,
				Component: strings.TrimSpace(p["component"]),
				PID:       p["pid"],
				Content:   p["content"],
				Level:     extractLevel(p["content"]),
			}
		}
	case OSMacOS:
		if p, ok := parseNamed(macosRegex, trimmed); ok {
			return models.ParsedLog{
				OS:        OSMacOS,
				Component: strings.TrimSpace(p["component"]),
				PID:       p["pid"],
				Content:   p["content"],
			}
		}
	case OSWindows:
		if p, ok := parseNamed(windowsRegex, trimmed); ok {
			return models.ParsedLog{
				OS:        OSWindows,
				Component: p["component"],
				Content:   p["content"],
				Level:     strings.ToUpper(p["level"]),
			}
		}
	}

	unknown := models.Unknown(os, trimmed)
	return unknown
}

func extractLevel(content string) string {
	if m := logLevel.FindString(content); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

func parseNamed(re *regexp.Regexp, line string) (map[string]string, bool) {
	match := re.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}
	out := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = match[i]
	}
	return out, true
}
