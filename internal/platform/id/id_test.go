package id

import (
	"strings"
	"testing"
)

func TestNewFormat(t *testing.T) {
	got := New("scan")
	parts := strings.Split(got, "_")
	if len(parts) != 3 {
		t.Fatalf("unexpected id format: %q", got)
	}
	if parts[0] != "scan" {
		t.Fatalf("prefix=%q want=scan", parts[0])
	}
	if len(parts[2]) != 12 {
		t.Fatalf("suffix len=%d want=12", len(parts[2]))
	}
	if New("scan") == got {
		t.Fatalf("ids must be unique")
	}
}
