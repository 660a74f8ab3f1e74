package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

const (
	pageTimeout = 30 * time.Second
	userAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// playerDetails mirrors ytInitialPlayerResponse.videoDetails
type playerDetails struct {
	VideoID       string `json:"videoId"`
	Title         string `json:"title"`
	LengthSeconds string `json:"lengthSeconds"`
	Author        string `json:"author"`
	Thumbnail     struct {
		Thumbnails []struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"thumbnail"`
}

// pageLoader returns a watch page's HTML and, when it can, the player details
type pageLoader interface {
	Load(ctx context.Context, url string) (string, *playerDetails, error)
}

// httpLoader fetches the page over plain HTTP
type httpLoader struct{}

func (httpLoader) Load(_ context.Context, url string) (string, *playerDetails, error) {
	a := fiber.Get(url)
	a.Set("Accept-Language", "en-US,en;q=0.9")
	a.UserAgent(userAgent)
	a.Timeout(pageTimeout)
	if err := a.Parse(); err != nil {
		return "", nil, err
	}
	code, body, errs := a.String()
	if len(errs) > 0 {
		return "", nil, errors.Join(errs...)
	}
	if code != fiber.StatusOK {
		return "", nil, fmt.Errorf("GET %s: status %d", url, code)
	}
	return body, nil, nil
}

// chromeLoader renders the page in headless Chrome
type chromeLoader struct{}

func (chromeLoader) Load(ctx context.Context, url string) (string, *playerDetails, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))...)
	defer cancel()
	cctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	cctx, cancel = context.WithTimeout(cctx, pageTimeout)
	defer cancel()

	var html, detailsJSON string
	err := chromedp.Run(cctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(
			`JSON.stringify((window.ytInitialPlayerResponse || {}).videoDetails || null)`,
			&detailsJSON,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load %s in chrome: %w", url, err)
	}

	var details *playerDetails
	if detailsJSON != "" && detailsJSON != "null" {
		details = &playerDetails{}
		if err := json.Unmarshal([]byte(detailsJSON), details); err != nil {
			details = nil
		}
	}
	return html, details, nil
}

func (c *Client) fetchPageMetadata(ctx context.Context, url string) (*types.VideoMetadata, error) {
	html, details, err := c.page.Load(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseWatchPage(html, details, url)
}

// parseWatchPage extracts metadata from the page's meta tags and embedded player response
func parseWatchPage(html string, details *playerDetails, url string) (*types.VideoMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	if details == nil {
		details = embeddedPlayerDetails(doc)
	}
	if details == nil {
		details = &playerDetails{}
	}

	meta := &types.VideoMetadata{
		VideoID:   firstNonEmpty(details.VideoID, attr(doc, `meta[itemprop="identifier"]`), attr(doc, `meta[itemprop="videoId"]`), VideoID(url)),
		Title:     firstNonEmpty(details.Title, attr(doc, `meta[property="og:title"]`), attr(doc, `meta[name="title"]`)),
		Thumbnail: attr(doc, `meta[property="og:image"]`),
		Channel: firstNonEmpty(details.Author,
			attr(doc, `span[itemprop="author"] link[itemprop="name"]`),
			attr(doc, `link[itemprop="name"]`),
			"Unknown"),
		UploadDate: compactDate(firstNonEmpty(attr(doc, `meta[itemprop="uploadDate"]`), attr(doc, `meta[itemprop="datePublished"]`))),
	}
	if meta.Thumbnail == "" {
		if thumbs := details.Thumbnail.Thumbnails; len(thumbs) > 0 {
			meta.Thumbnail = thumbs[len(thumbs)-1].URL
		}
	}
	if secs, err := strconv.Atoi(details.LengthSeconds); err == nil {
		meta.Duration = secs
	} else {
		meta.Duration = parseISODuration(attr(doc, `meta[itemprop="duration"]`))
	}

	if meta.Title == "" {
		return nil, errors.New("video page has no title (removed or private video)")
	}
	return meta, nil
}

// embeddedPlayerDetails decodes ytInitialPlayerResponse from an inline script
func embeddedPlayerDetails(doc *goquery.Document) *playerDetails {
	const marker = "ytInitialPlayerResponse = "
	var details *playerDetails
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, marker)
		if idx < 0 {
			return true
		}
		var resp struct {
			VideoDetails *playerDetails `json:"videoDetails"`
		}
		// Decode stops at the end of the first JSON value
		if err := json.NewDecoder(strings.NewReader(text[idx+len(marker):])).Decode(&resp); err == nil {
			details = resp.VideoDetails
		}
		return false
	})
	return details
}

func attr(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts PT1H2M3S to seconds, zero if malformed
func parseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}

// compactDate turns 2024-01-31T... into 20240131
func compactDate(s string) string {
	if len(s) < 10 {
		return ""
	}
	return strings.ReplaceAll(s[:10], "-", "")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
