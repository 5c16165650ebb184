package playlist

import (
	"errors"
	"testing"

	"lineupd/internal/errs"
)

func TestParseBasicEntries(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-id="cnn.us" group-title="News",CNN
http://x/s/1
#EXTINF:-1,Other
http://x/s/2
`
	entries, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].TvgID != "cnn.us" || entries[0].GroupTitle != "News" || entries[0].DisplayName != "CNN" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].DisplayName != "Other" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestParseCaseInsensitiveAttributes(t *testing.T) {
	content := "#EXTM3U\n#EXTINF:-1 TVG-ID=\"x\" Group-Title=\"Sports\",Label\nhttp://u/1\n"
	entries, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].TvgID != "x" || entries[0].GroupTitle != "Sports" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestParseExplicitGroupOverridesAttribute(t *testing.T) {
	content := "#EXTM3U\n#EXTINF:-1 group-title=\"Attr\",X\n#EXTGRP:Explicit\nhttp://u/1\n"
	entries, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].GroupTitle != "Explicit" {
		t.Errorf("GroupTitle = %q, want Explicit", entries[0].GroupTitle)
	}
}

func TestDisplayNameFallbackChain(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"label wins", "#EXTM3U\n#EXTINF:-1 tvg-name=\"Name\",Label\nhttp://u/1\n", "Label"},
		{"falls back to tvg-name", "#EXTM3U\n#EXTINF:-1 tvg-name=\"Name\",   \nhttp://u/1\n", "Name"},
		{"falls back to default", "#EXTM3U\n#EXTINF:-1,   \nhttp://u/1\n", "Unnamed Channel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(tc.content)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			if entries[0].DisplayName != tc.want {
				t.Errorf("DisplayName = %q, want %q", entries[0].DisplayName, tc.want)
			}
		})
	}
}

func TestParseRejectsEmptyBody(t *testing.T) {
	_, err := Parse("")
	if !errors.Is(err, errs.ErrParseFailed) {
		t.Fatalf("err = %v, want ErrParseFailed", err)
	}
}

func TestParseRejectsMissingHeader(t *testing.T) {
	content := "<html><body>503 Service Unavailable</body></html>"
	_, err := Parse(content)
	if !errors.Is(err, errs.ErrParseFailed) {
		t.Fatalf("err = %v, want ErrParseFailed", err)
	}
}

func TestParseRejectsHeaderWithNoEntries(t *testing.T) {
	_, err := Parse("#EXTM3U\n")
	if !errors.Is(err, errs.ErrParseFailed) {
		t.Fatalf("err = %v, want ErrParseFailed", err)
	}
}
