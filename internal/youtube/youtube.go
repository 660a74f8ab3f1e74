// Package youtube looks up video metadata and downloads audio tracks.
package youtube

import (
	"context"
	"fmt"
	"regexp"

	"github.com/codebuildervaibhav/video-summarize/internal/executor"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

var urlPattern = regexp.MustCompile(
	`^(https?://)?(www\.|m\.)?(youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/)([\w-]+)`)

// ValidateURL returns types.ErrInvalidInput unless url points at a video
func ValidateURL(url string) error {
	if !urlPattern.MatchString(url) {
		return fmt.Errorf("%w: not a YouTube video URL", types.ErrInvalidInput)
	}
	return nil
}

// VideoID extracts the id segment from a valid URL
func VideoID(url string) string {
	m := urlPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[4]
}

// Options configures a Client
type Options struct {
	YtDlp           string // yt-dlp binary
	FFmpeg          string
	MetadataBackend string // "ytdlp" or "page"
	Headless        bool   // page backend renders through Chrome
}

// Client implements metadata lookup and audio download for one video site
type Client struct {
	runner executor.Runner
	opts   Options
	page   pageLoader
}

func NewClient(runner executor.Runner, opts Options) *Client {
	if opts.YtDlp == "" {
		opts.YtDlp = "yt-dlp"
	}
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	c := &Client{runner: runner, opts: opts}
	if opts.Headless {
		c.page = chromeLoader{}
	} else {
		c.page = httpLoader{}
	}
	return c
}

func (c *Client) Validate(url string) error { return ValidateURL(url) }

// FetchMetadata looks up title, duration and channel without downloading media.
// Lookup failures wrap types.ErrUpstream and are not retried.
func (c *Client) FetchMetadata(ctx context.Context, url string) (*types.VideoMetadata, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}
	var (
		meta *types.VideoMetadata
		err  error
	)
	switch c.opts.MetadataBackend {
	case "page":
		meta, err = c.fetchPageMetadata(ctx, url)
	default:
		meta, err = c.fetchYtDlpMetadata(ctx, url)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}
	return meta, nil
}
