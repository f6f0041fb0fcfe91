package wildcard

import "testing"

func TestMatchStar(t *testing.T) {
	if !Match("*", "anything-at-all") {
		t.Fatalf("expected * to match any text")
	}
	if !Match("*", "") {
		t.Fatalf("expected * to match empty text")
	}
}

func TestMatchSubstringGlob(t *testing.T) {
	if !Match("*sonnet*", "claude-3-5-sonnet-20241022") {
		t.Fatalf("expected *sonnet* to match claude-3-5-sonnet-20241022")
	}
	if Match("*haiku*", "claude-sonnet-4") {
		t.Fatalf("expected *haiku* not to match claude-sonnet-4")
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	if !Match("*SONNET*", "claude-3-5-sonnet-20241022") {
		t.Fatalf("expected case-insensitive match")
	}
	if !Match("claude-3-5-HAIKU-20241022", "claude-3-5-haiku-20241022") {
		t.Fatalf("expected exact pattern to match case-insensitively")
	}
}

func TestMatchMetacharactersAreLiteral(t *testing.T) {
	if !Match("model.v1+beta", "model.v1+beta") {
		t.Fatalf("expected regex metacharacters to be treated literally")
	}
	if Match("model.v1", "modelXv1") {
		t.Fatalf("expected dot to be literal, not regex any-char")
	}
}

func TestMatchAnchored(t *testing.T) {
	if Match("haiku", "claude-haiku-4") {
		t.Fatalf("expected pattern without wildcards to require full match")
	}
}

func TestFindFirstExactBeforeWildcard(t *testing.T) {
	patterns := []string{"*", "claude-3-5-haiku-20241022"}
	got, ok := FindFirst(patterns, "claude-3-5-haiku-20241022")
	if !ok {
		t.Fatalf("expected a match")
	}
	if got != "claude-3-5-haiku-20241022" {
		t.Fatalf("expected exact pattern to win over wildcard, got %q", got)
	}
}

func TestFindFirstSequenceOrder(t *testing.T) {
	patterns := []string{"*sonnet*", "*claude*"}
	got, ok := FindFirst(patterns, "claude-3-7-sonnet-20250219")
	if !ok {
		t.Fatalf("expected a match")
	}
	if got != "*sonnet*" {
		t.Fatalf("expected first matching pattern in order, got %q", got)
	}
}

func TestFindFirstNoMatch(t *testing.T) {
	if _, ok := FindFirst([]string{"*haiku*"}, "claude-sonnet-4"); ok {
		t.Fatalf("expected no match")
	}
}
