package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"video-transcriber/internal/httpx"
)

// webAppID is the application id the Instagram web client sends.
const webAppID = "936619743392459"

// mediaTypeVideo marks video and reel items in feed responses.
const mediaTypeVideo = 2

var (
	ErrNoSession     = errors.New("no Instagram session cookie is saved")
	ErrLoginFailed   = errors.New("instagram rejected the session cookie; sign in again in your browser and copy a fresh sessionid")
	ErrNoSavedVideos = errors.New("no saved video posts found")
)

// SavedPost is one entry of the signed-in user's saved collection.
type SavedPost struct {
	Shortcode string `json:"shortcode"`
	URL       string `json:"url"`
	Owner     string `json:"owner"`
	IsVideo   bool   `json:"isVideo"`
}

// Session reads the saved collection of the account behind a browser
// sessionid cookie.
type Session struct {
	HTTP    *http.Client
	BaseURL string
	logger  *slog.Logger

	id string
}

// NewSession creates a client for sessionID on the shared retrying client.
func NewSession(client *http.Client, sessionID string, logger *slog.Logger) *Session {
	if client == nil {
		client = httpx.NewClient(httpx.Options{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{HTTP: client, BaseURL: DefaultBaseURL, logger: logger, id: strings.TrimSpace(sessionID)}
}

// Configured reports whether a session cookie is set.
func (s *Session) Configured() bool {
	return s.id != ""
}

// Username checks the session and returns the account it belongs to.
func (s *Session) Username(ctx context.Context) (string, error) {
	var body struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := s.get(ctx, "/api/v1/accounts/current_user/?edit=true", &body); err != nil {
		return "", err
	}
	if body.User.Username == "" {
		return "", ErrLoginFailed
	}
	return body.User.Username, nil
}

type savedPage struct {
	Items []struct {
		Media struct {
			Code      string `json:"code"`
			MediaType int    `json:"media_type"`
			User      struct {
				Username string `json:"username"`
			} `json:"user"`
		} `json:"media"`
	} `json:"items"`
	MoreAvailable bool   `json:"more_available"`
	NextMaxID     string `json:"next_max_id"`
}

// SavedVideos pages through the saved collection, newest first, and
// returns up to limit video posts. limit <= 0 returns all of them. skip is
// called for every non-video post and may be nil.
func (s *Session) SavedVideos(ctx context.Context, limit int, skip func(SavedPost)) ([]SavedPost, error) {
	var (
		out    []SavedPost
		cursor string
	)
	for {
		path := "/api/v1/feed/saved/posts/"
		if cursor != "" {
			path += "?max_id=" + url.QueryEscape(cursor)
		}
		var page savedPage
		if err := s.get(ctx, path, &page); err != nil {
			return out, err
		}

		for _, item := range page.Items {
			code := item.Media.Code
			if code == "" {
				continue
			}
			post := SavedPost{
				Shortcode: code,
				URL:       DefaultBaseURL + "/p/" + code + "/",
				Owner:     item.Media.User.Username,
				IsVideo:   item.Media.MediaType == mediaTypeVideo,
			}
			if !post.IsVideo {
				if skip != nil {
					skip(post)
				}
				continue
			}
			out = append(out, post)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if !page.MoreAvailable || page.NextMaxID == "" || page.NextMaxID == cursor {
			return out, nil
		}
		cursor = page.NextMaxID
		s.logger.Debug("fetching next saved page", "count", len(out))
	}
}

func (s *Session) get(ctx context.Context, path string, out any) error {
	if !s.Configured() {
		return ErrNoSession
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return err
	}
	setSessionHeaders(req, s.id)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("instagram request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrLoginFailed
	}
	if err := httpx.CheckResponse("instagram", resp, http.StatusOK); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// Expired sessions are redirected to the HTML login page.
		return fmt.Errorf("%w (%v)", ErrLoginFailed, err)
	}
	return nil
}

// setSessionHeaders authenticates req as the web client of sessionID.
func setSessionHeaders(req *http.Request, sessionID string) {
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: sessionID})
	req.Header.Set("X-IG-App-ID", webAppID)
	req.Header.Set("Accept", "application/json")
}
