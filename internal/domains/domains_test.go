package domains

import "testing"

func TestMatcher_Default(t *testing.T) {
	m := NewMatcher(Default)

	tests := []struct {
		url   string
		want  bool
		match string
	}{
		{"https://www.youtube.com/watch?v=abc", true, "youtube.com"},
		{"https://www.reddit.com/", true, "reddit.com"},
		{"https://x.com/home", true, "x.com"},
		{"https://WWW.TIKTOK.COM/foryou", true, "tiktok.com"},
		{"https://example.com/", false, ""},
		{"chrome://extensions", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := m.Match(tt.url)
			if ok != tt.want {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.url, ok, tt.want)
			}
			if got != tt.match {
				t.Errorf("Match(%q) = %q, want %q", tt.url, got, tt.match)
			}
			if m.Tracked(tt.url) != tt.want {
				t.Errorf("Tracked(%q) disagrees with Match", tt.url)
			}
		})
	}
}

func TestMatcher_SubstringSemantics(t *testing.T) {
	m := NewMatcher(Default)

	// Plain substring matching: any URL containing "x.com" is tracked.
	if !m.Tracked("https://www.netflix.com/browse") {
		t.Error("expected substring match on netflix.com containing x.com")
	}
}

func TestMatcher_IgnoresCase(t *testing.T) {
	m := NewMatcher([]string{"YouTube.com", "news.YCombinator.com"})

	tests := []struct {
		url   string
		match string
	}{
		{"https://WWW.YouTube.COM/watch?v=AbC", "youtube.com"},
		{"https://www.youtube.com/", "youtube.com"},
		{"HTTPS://NEWS.YCOMBINATOR.COM/item?id=1", "news.ycombinator.com"},
		{"https://News.YCombinator.com/", "news.ycombinator.com"},
	}
	for _, tt := range tests {
		got, ok := m.Match(tt.url)
		if !ok || got != tt.match {
			t.Errorf("Match(%q) = %q, %v; want %q, true", tt.url, got, ok, tt.match)
		}
	}
}

func TestNewMatcher_NormalizesList(t *testing.T) {
	m := NewMatcher([]string{" YouTube.com ", "youtube.com", "", "news.ycombinator.com"})

	got := m.Domains()
	if len(got) != 2 {
		t.Fatalf("expected 2 domains, got %v", got)
	}
	if got[0] != "youtube.com" || got[1] != "news.ycombinator.com" {
		t.Errorf("unexpected domains %v", got)
	}
}
