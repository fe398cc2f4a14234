package models

import "time"

// IssueLogEntry is one log line retained on an open Issue.
type IssueLogEntry struct {
	Raw       string    `json:"raw"`
	Templated string    `json:"templated"`
	Parsed    ParsedLog `json:"parsed"`
	Timestamp time.Time `json:"ts"`
}

// Issue is the in-memory aggregate keyed by os|component|pid. It is mutated
// only by the issue aggregator loop and is never shared across goroutines.
type Issue struct {
	OS         string          `json:"os"`
	Key        string          `json:"key"`
	CreatedAt  time.Time       `json:"created_at"`
	LastSeenAt time.Time       `json:"last_seen_at"`
	Logs       []IssueLogEntry `json:"logs"`
}

// IssueKey builds the "os|component|pid" aggregation key. PID may be empty.
func IssueKey(os, component, pid string) string {
	if pid == "" {
		return os + "|" + component
	}
	return os + "|" + component + "|" + pid
}

// Append records a new log entry and advances LastSeenAt.
func (i *Issue) Append(entry IssueLogEntry) {
	i.Logs = append(i.Logs, entry)
	if entry.Timestamp.After(i.LastSeenAt) {
		i.LastSeenAt = entry.Timestamp
	}
}

// Idle reports whether the issue has been quiet for at least d.
func (i *Issue) Idle(now time.Time, d time.Duration) bool {
	return now.Sub(i.LastSeenAt) >= d
}

// IssueCandidate is the flushed summary appended to issues_candidates.
type IssueCandidate struct {
	OS               string          `json:"os"`
	IssueKey         string          `json:"issue_key"`
	TemplatedSummary string          `json:"templated_summary"`
	Logs             []IssueLogEntry `json:"logs"`
}

// CapLogs truncates logs to maxLogs entries, keeping the most recent ones,
// per the ISSUE_MAX_LOGS_FOR_LLM invariant.
func CapLogs(logs []IssueLogEntry, maxLogs int) []IssueLogEntry {
	if len(logs) <= maxLogs {
		return logs
	}
	return logs[len(logs)-maxLogs:]
}
