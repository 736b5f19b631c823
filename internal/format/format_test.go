package format

import (
	"testing"
	"time"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{90 * time.Second, "1 minute ago"},
		{45 * time.Minute, "45 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{26 * time.Hour, "1 day ago"},
		{8 * 24 * time.Hour, "1 week ago"},
		{40 * 24 * time.Hour, "1 month ago"},
		{90 * 24 * time.Hour, "3 months ago"},
	}
	for _, tc := range cases {
		if got := TimeAgo(now.Add(-tc.ago), now); got != tc.want {
			t.Errorf("TimeAgo(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}

func TestDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		span time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{5 * time.Minute, "5m"},
		{59*time.Minute + 59*time.Second, "59m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tc := range cases {
		if got := Duration(start, start.Add(tc.span)); got != tc.want {
			t.Errorf("Duration(%v) = %q, want %q", tc.span, got, tc.want)
		}
	}
}

func TestFileList(t *testing.T) {
	if got := FileList(nil, 5); got != "None" {
		t.Errorf("empty list should render None, got %q", got)
	}

	files := []string{"a.go", "b.go", "c.go"}
	got := FileList(files, 2)
	want := "  - a.go\n  - b.go\n  ... and 1 more"
	if got != want {
		t.Errorf("FileList = %q, want %q", got, want)
	}

	// Under the cap there must be no marker.
	got = FileList(files, 5)
	want = "  - a.go\n  - b.go\n  - c.go"
	if got != want {
		t.Errorf("FileList = %q, want %q", got, want)
	}
}
