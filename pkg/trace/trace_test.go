package trace

import (
	"context"
	"strings"
	"testing"
)

func TestFromHeader(t *testing.T) {
	if got := FromHeader("req-42"); got != "req-42" {
		t.Errorf("FromHeader(req-42) = %q", got)
	}
	for _, bad := range []string{"", "has space", "line\nbreak", strings.Repeat("a", 65)} {
		got := FromHeader(bad)
		if got == bad || len(got) != 32 {
			t.Errorf("FromHeader(%q) = %q, want fresh 32 char id", bad, got)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != "" {
		t.Error("empty context carried an id")
	}
	ctx := WithContext(context.Background(), "abc")
	if FromContext(ctx) != "abc" {
		t.Errorf("FromContext() = %q", FromContext(ctx))
	}
}
