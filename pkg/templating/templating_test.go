package templating

import "testing"

func TestContentMasksVolatileTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4", "connection from 10.0.0.1 refused", "connection from <*> refused"},
		{"mac", "link down on aa:bb:cc:dd:ee:ff", "link down on <*>"},
		{"uuid", "session 123e4567-e89b-12d3-a456-426614174000 expired", "session <*> expired"},
		{"hex", "fault at 0x1A2B", "fault at <*>"},
		{"version", "upgraded to 1.2.3", "upgraded to <*>"},
		{"hashnum", "job #42 failed", "job #<*> failed"},
		{"plainnum", "retry 3 of 5", "retry <*> of <*>"},
		{"whitespace", "a    b\tc", "a b c"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Content(c.in); got != c.want {
				t.Errorf("Content(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestContentDeterministicAcrossMaskedVariants(t *testing.T) {
	a := "Failed password for invalid user root from 10.0.0.1 port 5555"
	b := "Failed password for invalid user root from 10.0.0.2 port 9999"
	if Content(a) != Content(b) {
		t.Errorf("expected identical templates, got %q vs %q", Content(a), Content(b))
	}
}

func TestLineOmitsPIDWhenEmpty(t *testing.T) {
	got := Line("sshd", "", "listening on port 22")
	want := "sshd: listening on port <*>"
	if got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}

func TestLineIncludesPID(t *testing.T) {
	got := Line("sshd", "1234", "session opened")
	want := "sshd[1234]: session opened"
	if got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}
