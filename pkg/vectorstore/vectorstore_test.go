package vectorstore

import "testing"

func TestCollectionName(t *testing.T) {
	got := CollectionName("proto_linux", "text-embedding-3-small")
	want := "proto_linux__text-embedding-3-small"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCollectionNameNoEmbeddingID(t *testing.T) {
	if got := CollectionName("proto_linux", ""); got != "proto_linux" {
		t.Errorf("got %q", got)
	}
}

func TestCollectionForOS(t *testing.T) {
	cases := map[string]string{
		"mac": "macos", "macos": "macos", "osx": "macos",
		"linux": "linux", "windows": "windows", "win": "windows",
	}
	for in, want := range cases {
		if got := CollectionForOS("logs_", in); got != "logs_"+want {
			t.Errorf("CollectionForOS(%q) = %q, want %q", in, got, "logs_"+want)
		}
	}
}
