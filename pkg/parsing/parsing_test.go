package parsing

import "testing"

func TestInferOS(t *testing.T) {
	cases := []struct {
		kind, source, want string
	}{
		{"Linux.log", "Linux.log:filetail", OSLinux},
		{"Mac.log", "Mac.log:filetail", OSMacOS},
		{"windows", "Windows.log:filetail", OSWindows},
		{"thousandeyes", "thousandeyes:poller", OSNetwork},
		{"snmp", "snmp:10.0.0.1", OSNetwork},
		{"scom", "scom:poller", OSWindows},
		{"squaredup", "squaredup:dashboard", OSWindows},
	}
	for _, c := range cases {
		if got := InferOS(c.kind, c.source); got != c.want {
			t.Errorf("InferOS(%q,%q) = %q, want %q", c.kind, c.source, got, c.want)
		}
	}
}

func TestParseLinuxLine(t *testing.T) {
	line := "Jun 14 15:16:01 host sshd[1234]: Failed password for invalid user root from 10.0.0.1"
	p := Parse(OSLinux, line)
	if p.Component != "sshd" {
		t.Errorf("component = %q, want sshd", p.Component)
	}
	if p.PID != "1234" {
		t.Errorf("pid = %q, want 1234", p.PID)
	}
	if p.Content == "" {
		t.Error("content should not be empty")
	}
}

func TestParseFallsBackToUnknown(t *testing.T) {
	p := Parse(OSLinux, "not a syslog line at all")
	if p.Component != "unknown" {
		t.Errorf("component = %q, want unknown", p.Component)
	}
	if p.Content != "not a syslog line at all" {
		t.Errorf("content = %q", p.Content)
	}
}

func TestParseWindowsLine(t *testing.T) {
	line := "2016-09-28 04:30:30, Info  CBS    Ready to start servicing"
	p := Parse(OSWindows, line)
	if p.Component != "CBS" {
		t.Errorf("component = %q, want CBS", p.Component)
	}
	if p.Level != "INFO" {
		t.Errorf("level = %q, want INFO", p.Level)
	}
}
