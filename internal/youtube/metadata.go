package youtube

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// ytDlpInfo is the subset of `yt-dlp -J` output we read
type ytDlpInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Thumbnail  string  `json:"thumbnail"`
	Duration   float64 `json:"duration"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	UploadDate string  `json:"upload_date"`
}

func (c *Client) fetchYtDlpMetadata(ctx context.Context, url string) (*types.VideoMetadata, error) {
	out, err := c.runner.Run(ctx, c.opts.YtDlp,
		"-J",
		"--skip-download",
		"--no-warnings",
		"--no-playlist",
		url,
	)
	if err != nil {
		return nil, err
	}
	return parseYtDlpInfo([]byte(out))
}

func parseYtDlpInfo(data []byte) (*types.VideoMetadata, error) {
	var info ytDlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	if info.ID == "" || info.Title == "" {
		return nil, fmt.Errorf("yt-dlp returned no video")
	}

	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}
	if channel == "" {
		channel = "Unknown"
	}
	return &types.VideoMetadata{
		VideoID:    info.ID,
		Title:      info.Title,
		Thumbnail:  info.Thumbnail,
		Duration:   int(info.Duration),
		Channel:    channel,
		UploadDate: info.UploadDate,
	}, nil
}
