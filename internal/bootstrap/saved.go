package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"video-transcriber/internal/config"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/instagram"
)

// SaveInstagramSession stores the sessionid cookie copied from a signed-in
// browser. The cached username is cleared until the session is tested.
func (a *App) SaveInstagramSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("instagram sessionid cookie is required")
	}
	if a.Credentials == nil {
		return errors.New("credential store is not configured")
	}
	if err := a.Credentials.SaveInstagram(sessionID, ""); err != nil {
		return fmt.Errorf("save instagram session: %w", err)
	}
	return nil
}

// TestInstagram checks the saved session and returns its username.
func (a *App) TestInstagram() (string, error) {
	creds, err := a.loadCredentials()
	if err != nil {
		return "", err
	}
	if creds.InstagramSession == "" {
		return "", instagram.ErrNoSession
	}

	ctx, cancel := context.WithTimeout(a.lifetime, connectionTestTimeout)
	defer cancel()
	username, err := a.newSession(creds.InstagramSession).Username(ctx)
	if err != nil {
		return "", err
	}
	if username != creds.InstagramUsername && a.Credentials != nil {
		if err := a.Credentials.SaveInstagram(creds.InstagramSession, username); err != nil {
			a.Logger.Warn("cache instagram username", "error", err)
		}
	}
	return username, nil
}

// SavedPostItems lists up to limit saved video posts as URL work items.
// limit <= 0 takes the whole collection.
func (a *App) SavedPostItems(ctx context.Context, limit int) ([]domain.WorkItem, error) {
	creds, err := a.loadCredentials()
	if err != nil {
		return nil, err
	}
	if creds.InstagramSession == "" {
		return nil, instagram.ErrNoSession
	}

	session := a.newSession(creds.InstagramSession)
	posts, err := session.SavedVideos(ctx, limit, func(p instagram.SavedPost) {
		a.Logger.Info("skipping saved post that is not a video", "shortcode", p.Shortcode)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch saved posts: %w", err)
	}
	if len(posts) == 0 {
		return nil, instagram.ErrNoSavedVideos
	}

	urls := make([]string, 0, len(posts))
	for _, p := range posts {
		urls = append(urls, p.URL)
	}
	a.Logger.Info("saved videos queued", "count", len(urls), "limit", limit)
	return URLItems(urls)
}

// StartSavedPostsBatch downloads and processes saved video posts in the
// background.
func (a *App) StartSavedPostsBatch(limit int) (domain.Job, error) {
	items, err := a.SavedPostItems(a.lifetime, limit)
	if err != nil {
		return domain.Job{}, err
	}
	_, job, err := a.launch(a.lifetime, items, config.Overrides{})
	return job, err
}
