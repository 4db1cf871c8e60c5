package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "filechat/errors"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrNoTranscript is returned when a video exposes no caption track.
var ErrNoTranscript = errors.New("no transcript available for video")

// Video holds the fetched metadata and transcript for one YouTube video.
type Video struct {
	ID         string
	Title      string
	Transcript string
}

// Client fetches video titles and transcripts from YouTube watch pages. No
// API key is involved; the transcript comes from the caption track the
// watch page itself references.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://www.youtube.com",
		logger:     logger,
	}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from the common YouTube
// URL shapes: watch, youtu.be, shorts, embed, and live links.
func ParseVideoID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.WrapError(apperrors.ErrInvalidData, "invalid youtube url")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); videoIDPattern.MatchString(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); videoIDPattern.MatchString(id) {
			return id, nil
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); videoIDPattern.MatchString(id) {
					return id, nil
				}
			}
		}
	}

	return "", apperrors.WrapErrorf(apperrors.ErrInvalidData, "unrecognized youtube url %q", raw)
}

// IsYouTubeURL reports whether raw looks like a link this client can fetch.
func IsYouTubeURL(raw string) bool {
	_, err := ParseVideoID(raw)
	return err == nil
}

// Fetch loads the watch page for the video behind rawURL and returns the
// video's title and flattened transcript.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Video, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	page, err := c.get(ctx, c.baseURL+"/watch?v="+videoID)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse watch page: %w", err)
	}
	title := pageTitle(doc)

	trackURL, ok := captionTrackURL(string(page))
	if !ok {
		return nil, ErrNoTranscript
	}

	track, err := c.get(ctx, trackURL)
	if err != nil {
		return nil, err
	}

	transcript, err := parseTranscript(track)
	if err != nil {
		return nil, err
	}
	if transcript == "" {
		return nil, ErrNoTranscript
	}

	c.logger.Info("Fetched YouTube transcript",
		zap.String("video_id", videoID),
		zap.Int("characters", len(transcript)))

	return &Video{ID: videoID, Title: title, Transcript: transcript}, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept-Language", "en")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrNetwork, "youtube fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.WrapErrorf(apperrors.ErrNetwork, "youtube responded %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func pageTitle(doc *goquery.Document) string {
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && title != "" {
		return title
	}
	if title, ok := doc.Find(`meta[name="title"]`).Attr("content"); ok && title != "" {
		return title
	}
	return strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube")
}

// captionTrackURL pulls the first caption track's baseUrl out of the player
// JSON embedded in the watch page.
var captionTrackPattern = regexp.MustCompile(`"captionTracks":\s*\[\s*\{\s*"baseUrl":\s*"([^"]+)"`)

func captionTrackURL(page string) (string, bool) {
	m := captionTrackPattern.FindStringSubmatch(page)
	if len(m) < 2 {
		return "", false
	}
	u := m[1]
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")
	return u, true
}

// parseTranscript flattens the timedtext XML caption segments into a single
// string. Segment text arrives HTML-escaped twice, so one extra unescape
// pass runs after parsing.
func parseTranscript(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse caption track: %w", err)
	}

	var segments []string
	doc.Find("text").Each(func(_ int, s *goquery.Selection) {
		segment := strings.TrimSpace(html.UnescapeString(s.Text()))
		if segment != "" {
			segments = append(segments, segment)
		}
	})
	return strings.Join(segments, " "), nil
}
