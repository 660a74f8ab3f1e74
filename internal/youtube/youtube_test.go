package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://youtu.be/abc123", true},
		{"https://www.youtube.com/watch?v=abc12345678", true},
		{"http://youtube.com/watch?v=abc-_123", true},
		{"youtube.com/shorts/xyz987", true},
		{"https://m.youtube.com/watch?v=abc12345678", true},
		{"abc12345678", false},
		{"https://vimeo.com/12345", false},
		{"https://www.youtube.com/channel/UC123", false},
		{"https://youtu.be/", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, types.ErrInvalidInput)
			}
		})
	}
}

func TestVideoID(t *testing.T) {
	assert.Equal(t, "abc123", VideoID("https://youtu.be/abc123?t=4"))
	assert.Equal(t, "abc12345678", VideoID("https://www.youtube.com/watch?v=abc12345678&list=x"))
	assert.Empty(t, VideoID("nope"))
}

// fakeRunner records invocations and returns canned output
type fakeRunner struct {
	out   string
	err   error
	calls [][]string
	onRun func(name string, args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.onRun != nil {
		f.onRun(name, args)
	}
	return f.out, f.err
}

func (f *fakeRunner) Stream(context.Context, func(string), string, ...string) error { return nil }

func TestFetchMetadataYtDlp(t *testing.T) {
	runner := &fakeRunner{out: `{"id":"abc12345678","title":"Go Concurrency","thumbnail":"https://i.ytimg.com/t.jpg",
		"duration":3725.4,"uploader":"Gopher TV","upload_date":"20240131"}`}
	c := NewClient(runner, Options{})

	meta, err := c.FetchMetadata(context.Background(), "https://www.youtube.com/watch?v=abc12345678")
	require.NoError(t, err)
	assert.Equal(t, "abc12345678", meta.VideoID)
	assert.Equal(t, "Go Concurrency", meta.Title)
	assert.Equal(t, 3725, meta.Duration)
	assert.Equal(t, "Gopher TV", meta.Channel)
	assert.Equal(t, "1:02:05", meta.DurationString())

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "yt-dlp", runner.calls[0][0])
	assert.Contains(t, runner.calls[0], "--skip-download")
}

func TestFetchMetadataInvalidURLDoesNotCallOut(t *testing.T) {
	runner := &fakeRunner{}
	c := NewClient(runner, Options{})
	_, err := c.FetchMetadata(context.Background(), "abc12345678")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Empty(t, runner.calls)
}

func TestFetchMetadataUpstreamFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("ERROR: Private video")}
	c := NewClient(runner, Options{})
	_, err := c.FetchMetadata(context.Background(), "https://youtu.be/abc123")
	assert.ErrorIs(t, err, types.ErrUpstream)
	assert.Contains(t, err.Error(), "Private video")
}

func TestFetchAudioMissingFile(t *testing.T) {
	runner := &fakeRunner{out: "abc123\n"}
	c := NewClient(runner, Options{})
	_, err := c.FetchAudio(context.Background(), "https://youtu.be/abc123", t.TempDir())
	assert.ErrorIs(t, err, types.ErrDownload)
	assert.ErrorIs(t, err, types.ErrUpstream)
}

func TestFetchAudioArgsAndRenormalize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "job")
	runner := &fakeRunner{out: "abc123\n"}
	runner.onRun = func(name string, args []string) {
		switch name {
		case "yt-dlp":
			// not a real WAV header, so the fetcher asks ffmpeg to re-encode
			require.NoError(t, os.WriteFile(filepath.Join(dir, "abc123.wav"), []byte("junk"), 0644))
		case "ffmpeg":
			out := args[len(args)-1]
			require.NoError(t, os.WriteFile(out, []byte("normalized"), 0644))
		}
	}
	c := NewClient(runner, Options{})

	path, err := c.FetchAudio(context.Background(), "https://youtu.be/abc123", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc123.wav"), path)

	require.Len(t, runner.calls, 2)
	dl := strings.Join(runner.calls[0], " ")
	assert.Contains(t, dl, "-f bestaudio/best")
	assert.Contains(t, dl, "--audio-format wav")
	assert.Contains(t, dl, "ffmpeg:-ar 16000 -ac 1")
	assert.Equal(t, "ffmpeg", runner.calls[1][0])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "normalized", string(data))
}

const watchPage = `<!DOCTYPE html><html><head>
<title>Go Concurrency - YouTube</title>
<meta property="og:title" content="Go Concurrency Patterns">
<meta property="og:image" content="https://i.ytimg.com/vi/abc12345678/maxresdefault.jpg">
<meta itemprop="identifier" content="abc12345678">
<meta itemprop="duration" content="PT31M5S">
<meta itemprop="uploadDate" content="2012-07-02T00:00:00-07:00">
</head><body>
<span itemprop="author"><link itemprop="name" content="Google for Developers"></span>
<script>var ytInitialPlayerResponse = {"videoDetails":{"videoId":"abc12345678","title":"Go Concurrency Patterns","lengthSeconds":"1865","author":"Google for Developers"}};var meta = {};</script>
</body></html>`

func TestParseWatchPage(t *testing.T) {
	meta, err := parseWatchPage(watchPage, nil, "https://www.youtube.com/watch?v=abc12345678")
	require.NoError(t, err)
	assert.Equal(t, "abc12345678", meta.VideoID)
	assert.Equal(t, "Go Concurrency Patterns", meta.Title)
	assert.Equal(t, 1865, meta.Duration)
	assert.Equal(t, "Google for Developers", meta.Channel)
	assert.Equal(t, "20120702", meta.UploadDate)
	assert.Equal(t, "https://i.ytimg.com/vi/abc12345678/maxresdefault.jpg", meta.Thumbnail)
}

func TestParseWatchPageMetaOnly(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Only Meta">
<meta itemprop="duration" content="PT1H2M3S"></head><body></body></html>`
	meta, err := parseWatchPage(html, nil, "https://youtu.be/xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", meta.VideoID)
	assert.Equal(t, 3723, meta.Duration)
	assert.Equal(t, "Unknown", meta.Channel)
}

func TestParseWatchPageUnavailable(t *testing.T) {
	_, err := parseWatchPage(`<html><body>This video isn't available anymore</body></html>`, nil, "https://youtu.be/xyz")
	assert.Error(t, err)
}

func TestParseISODuration(t *testing.T) {
	assert.Equal(t, 65, parseISODuration("PT1M5S"))
	assert.Equal(t, 90061, parseISODuration("P1DT1H1M1S"))
	assert.Equal(t, 0, parseISODuration("garbage"))
}

func TestHTTPLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(watchPage))
	}))
	defer srv.Close()

	html, details, err := httpLoader{}.Load(context.Background(), srv.URL+"/watch?v=abc12345678")
	require.NoError(t, err)
	assert.Nil(t, details)
	assert.Contains(t, html, "og:title")
}
