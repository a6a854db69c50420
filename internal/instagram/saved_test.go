package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sessionid")
		if err != nil || cookie.Value != "good-session" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, webAppID, r.Header.Get("X-IG-App-ID"))

		switch r.URL.Path {
		case "/api/v1/accounts/current_user/":
			_, _ = w.Write([]byte(`{"user":{"username":"catlover"}}`))
		case "/api/v1/feed/saved/posts/":
			if r.URL.Query().Get("max_id") == "" {
				_, _ = w.Write([]byte(`{"items":[
					{"media":{"code":"VID1","media_type":2,"user":{"username":"a"}}},
					{"media":{"code":"PIC1","media_type":1,"user":{"username":"b"}}},
					{"media":{"code":"VID2","media_type":2,"user":{"username":"c"}}}
				],"more_available":true,"next_max_id":"page2"}`))
				return
			}
			assert.Equal(t, "page2", r.URL.Query().Get("max_id"))
			_, _ = w.Write([]byte(`{"items":[
				{"media":{"code":"VID3","media_type":2,"user":{"username":"d"}}}
			],"more_available":false}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSession(srv *httptest.Server, id string) *Session {
	s := NewSession(srv.Client(), id, nil)
	s.BaseURL = srv.URL
	return s
}

// TestSavedVideosPagesAndSkipsImages follows the cursor and keeps only videos.
func TestSavedVideosPagesAndSkipsImages(t *testing.T) {
	srv := savedServer(t)
	var skipped []string

	posts, err := newTestSession(srv, "good-session").SavedVideos(context.Background(), 0, func(p SavedPost) {
		skipped = append(skipped, p.Shortcode)
	})
	require.NoError(t, err)

	var codes []string
	for _, p := range posts {
		codes = append(codes, p.Shortcode)
		assert.True(t, p.IsVideo)
	}
	assert.Equal(t, []string{"VID1", "VID2", "VID3"}, codes)
	assert.Equal(t, []string{"PIC1"}, skipped)
	assert.Equal(t, "https://www.instagram.com/p/VID1/", posts[0].URL)
	assert.Equal(t, "a", posts[0].Owner)
}

// TestSavedVideosStopsAtLimit does not request further pages once full.
func TestSavedVideosStopsAtLimit(t *testing.T) {
	srv := savedServer(t)

	posts, err := newTestSession(srv, "good-session").SavedVideos(context.Background(), 2, nil)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "VID2", posts[1].Shortcode)
}

// TestSessionUsernameAndRejection covers valid, rejected and missing sessions.
func TestSessionUsernameAndRejection(t *testing.T) {
	srv := savedServer(t)

	name, err := newTestSession(srv, "good-session").Username(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "catlover", name)

	_, err = newTestSession(srv, "expired").Username(context.Background())
	assert.ErrorIs(t, err, ErrLoginFailed)

	_, err = newTestSession(srv, " ").SavedVideos(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

// TestSessionTreatsLoginPageAsRejected maps an HTML redirect target to a login failure.
func TestSessionTreatsLoginPageAsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>Log in</html>"))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestSession(srv, "whatever").Username(context.Background())
	assert.ErrorIs(t, err, ErrLoginFailed)
}

// TestDownloadSendsSessionCookie attaches the cookie to post page requests.
func TestDownloadSendsSessionCookie(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err == nil {
			got = c.Value
		}
		_, _ = w.Write([]byte(`<html><head></head></html>`))
	}))
	t.Cleanup(srv.Close)

	d := NewDownloader(srv.Client(), nil, nil)
	d.BaseURL = srv.URL
	d.SessionID = "good-session"

	_, err := d.Download(context.Background(), "https://www.instagram.com/p/PRIV/", t.TempDir())
	assert.ErrorIs(t, err, ErrNoVideo)
	assert.Equal(t, "good-session", got)
}
