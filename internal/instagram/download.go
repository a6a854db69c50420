package instagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"video-transcriber/internal/httpx"
)

// DefaultBaseURL is where post pages are fetched from.
const DefaultBaseURL = "https://www.instagram.com"

var (
	ErrInvalidURL   = errors.New("invalid Instagram URL; expected a post link such as https://www.instagram.com/p/ABC123/")
	ErrNoVideo      = errors.New("no video was found in the post; it might contain only images")
	ErrFileNotFound = errors.New("downloaded video not found in output directory")
)

// Post is a downloaded Instagram post.
type Post struct {
	Shortcode   string `json:"shortcode"`
	URL         string `json:"url"`
	MediaPath   string `json:"mediaPath"`
	Description string `json:"description,omitempty"`
}

// Renderer returns the fully rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Downloader fetches post pages and saves their video.
type Downloader struct {
	HTTP *http.Client
	// Media streams video bodies. It has no total timeout; nil derives one
	// from HTTP.
	Media   *http.Client
	BaseURL string
	// Browser is consulted when the static page has no og:video. Nil
	// disables the fallback.
	Browser Renderer
	// SessionID, when set, is sent as the sessionid cookie so posts visible
	// only to the signed-in account resolve.
	SessionID string
	logger    *slog.Logger
}

// NewDownloader creates a downloader on the shared retrying client.
func NewDownloader(client *http.Client, browser Renderer, logger *slog.Logger) *Downloader {
	if client == nil {
		client = httpx.NewClient(httpx.Options{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{HTTP: client, Media: httpx.Streaming(client), BaseURL: DefaultBaseURL, Browser: browser, logger: logger}
}

type pageMeta struct {
	VideoURL    string
	Description string
}

// Download saves the video of the post at url into dir as <shortcode>.mp4
// and returns the path found by scanning dir.
func (d *Downloader) Download(ctx context.Context, url, dir string) (Post, error) {
	shortcode := ExtractShortcode(url)
	if shortcode == "" {
		return Post{}, ErrInvalidURL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Post{}, fmt.Errorf("create download dir: %w", err)
	}

	pageURL := d.postURL(shortcode)
	meta, err := d.fetchMeta(ctx, pageURL)
	if err != nil {
		return Post{}, err
	}
	if meta.VideoURL == "" && d.Browser != nil {
		d.logger.Info("static page has no video, rendering in browser", "shortcode", shortcode)
		html, rerr := d.Browser.Render(ctx, pageURL)
		if rerr != nil {
			return Post{}, fmt.Errorf("browser render: %w", rerr)
		}
		rendered, perr := parseMeta(strings.NewReader(html))
		if perr != nil {
			return Post{}, perr
		}
		if meta.Description == "" {
			meta.Description = rendered.Description
		}
		meta.VideoURL = rendered.VideoURL
	}
	if meta.VideoURL == "" {
		return Post{}, ErrNoVideo
	}

	if err := d.save(ctx, meta.VideoURL, filepath.Join(dir, shortcode+".mp4")); err != nil {
		return Post{}, err
	}

	path, err := FindDownloaded(dir, shortcode)
	if err != nil {
		return Post{}, err
	}
	return Post{Shortcode: shortcode, URL: url, MediaPath: path, Description: meta.Description}, nil
}

func (d *Downloader) postURL(shortcode string) string {
	base := d.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/p/" + shortcode + "/"
}

func (d *Downloader) fetchMeta(ctx context.Context, pageURL string) (pageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return pageMeta{}, err
	}
	if d.SessionID != "" {
		setSessionHeaders(req, d.SessionID)
		req.Header.Set("Accept", "text/html")
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return pageMeta{}, fmt.Errorf("fetch post page: %w", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckResponse("instagram", resp, http.StatusOK); err != nil {
		return pageMeta{}, err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return pageMeta{}, fmt.Errorf("read post page: %w", err)
	}
	return parseMeta(bytes.NewReader(b))
}

// parseMeta reads the Open Graph video and description tags.
func parseMeta(r io.Reader) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse post page: %w", err)
	}
	var meta pageMeta
	for _, prop := range []string{"og:video", "og:video:secure_url", "og:video:url"} {
		if v, ok := doc.Find(`meta[property="` + prop + `"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			meta.VideoURL = strings.TrimSpace(v)
			break
		}
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		meta.Description = strings.TrimSpace(v)
	} else if v, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		meta.Description = strings.TrimSpace(v)
	}
	return meta, nil
}

// save streams videoURL to dest through a temporary file.
func (d *Downloader) save(ctx context.Context, videoURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return err
	}
	media := d.Media
	if media == nil {
		media = httpx.Streaming(d.HTTP)
	}
	resp, err := media.Do(req)
	if err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckResponse("instagram", resp, http.StatusOK); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save video: %w", err)
	}
	return nil
}

// FindDownloaded returns the first video file in dir whose name contains
// shortcode.
func FindDownloaded(dir, shortcode string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan download dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if (ext == ".mp4" || ext == ".mov") && strings.Contains(name, shortcode) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", ErrFileNotFound
}
