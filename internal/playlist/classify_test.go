package playlist

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		url  string
		want ContentType
	}{
		{"http://x/live/user/pass/12345.ts", Live},
		{"http://x/series/user/pass/1/2/3.mp4", Series},
		{"http://x/movie/user/pass/99.mkv", VOD},
		{"http://x/vod/user/pass/1.avi", VOD},
		{"http://x/stream?type=live", Live},
		{"http://x/stream?kind=vod", VOD},
		{"http://x/stream?type=series", Series},
		{"http://x/path/to/video.mp4", VOD},
		{"http://x/path/to/stream.m3u8", Live},
		{"http://x/path/to/stream.ts", Live},
		{"http://x/path/unknown", Live},
		{":: not a url ::/live/x.ts", Live},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			if got := Classify(tc.url); got != tc.want {
				t.Errorf("Classify(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestClassifyPure(t *testing.T) {
	url := "http://x/live/a/b/1.ts"
	first := Classify(url)
	for i := 0; i < 5; i++ {
		if Classify(url) != first {
			t.Fatal("Classify is not a pure function of its input")
		}
	}
}
