package core

import "testing"

func TestPatterns_Match(t *testing.T) {
	t.Parallel()

	patterns := Patterns{
		"pg":      {"ready", "database system is ready to accept connections"},
		"bouncer": {""},
		"silent":  nil,
	}

	tests := map[string]struct {
		patterns Patterns
		name     string
		line     string
		wantLine string
		wantOK   bool
	}{
		"exact match":           {patterns: patterns, name: "pg", line: "ready", wantLine: "ready", wantOK: true},
		"trimmed match":         {patterns: patterns, name: "pg", line: "  ready\t", wantLine: "ready", wantOK: true},
		"substring is no match": {patterns: patterns, name: "pg", line: "not ready", wantLine: "not ready"},
		"case sensitive":        {patterns: patterns, name: "pg", line: "Ready", wantLine: "Ready"},
		"empty accepted line":   {patterns: patterns, name: "bouncer", line: "   ", wantLine: "", wantOK: true},
		"empty list":            {patterns: patterns, name: "silent", line: "ready", wantLine: "ready"},
		"unknown name":          {patterns: patterns, name: "other", line: "ready"},
		"nil patterns":          {patterns: nil, name: "pg", line: "ready"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			line, ok := tc.patterns.Match(tc.name, tc.line)
			if ok != tc.wantOK || line != tc.wantLine {
				t.Errorf("Match(%q, %q) = (%q, %v), want (%q, %v)", tc.name, tc.line, line, ok, tc.wantLine, tc.wantOK)
			}
		})
	}
}

func TestEvent_String(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ev   Event
		want string
	}{
		"line":    {ev: Event{Kind: EventLine, Name: "pg", Line: "hello"}, want: "[pg] hello"},
		"exit":    {ev: Event{Kind: EventExit, Name: "pg"}, want: "[pg] exited"},
		"timeout": {ev: Event{}, want: "timeout"},
		"unknown": {ev: Event{Kind: EventKind(7)}, want: "EventKind(7)"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := tc.ev.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}
