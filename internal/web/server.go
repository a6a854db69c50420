// Package web serves the browser front end: a JSON API over the same
// application service the desktop shell binds, plus a websocket event feed.
package web

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"video-transcriber/internal/batch"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/instagram"
	"video-transcriber/internal/jobs"
)

// DefaultAddr is the listen address used when none is given.
const DefaultAddr = "127.0.0.1:8765"

// Backend is the application service driven by the web front end.
type Backend interface {
	GetSettings() (domain.Settings, error)
	SaveSettings(settings domain.Settings) (domain.Settings, error)

	GetCredentials() (domain.CredentialStatus, error)
	SaveNotionCredentials(token, databaseID string) error
	SaveSummarizerCredentials(provider, apiKey, prompt string) error
	TestNotion() error
	TestSummarizer(provider string) error
	SaveInstagramSession(sessionID string) error
	TestInstagram() (string, error)

	GetDiagnostics() domain.DiagnosticReport
	RefreshDiagnostics() (domain.DiagnosticReport, error)
	InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error)
	GetWhisperModels() []domain.WhisperModelOption
	DownloadWhisperModel(modelID string) (domain.Settings, error)

	StartBatch(paths []string) (domain.Job, error)
	StartInstagramBatch(urls []string) (domain.Job, error)
	StartSavedPostsBatch(limit int) (domain.Job, error)
	LoadURLsFromFile(path string) ([]string, error)
	CancelBatch() error
	BatchSnapshot() domain.BatchSnapshot
	JobEvents(sinceSeq int64) []jobs.Event
	Events() *jobs.EventBus
	History(limit int) ([]domain.HistoryEntry, error)
}

// Server is the Fiber application for one Backend.
type Server struct {
	app     *fiber.App
	backend Backend
	logger  *slog.Logger
}

// New builds the server. assets, when non-nil, is served at the root.
func New(backend Backend, assets fs.FS, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "video-transcriber",
			DisableStartupMessage: true,
		}),
		backend: backend,
		logger:  log,
	}

	s.app.Use(recover.New())
	s.app.Use(logger.New())
	s.app.Use(sameOrigin)

	s.routes()
	if assets != nil {
		s.app.Use("/", filesystem.New(filesystem.Config{
			Root:   http.FS(assets),
			Index:  "index.html",
			Browse: false,
		}))
	}
	return s
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve listens on addr until ctx ends.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("web shutdown", "error", err)
		}
	}()
	s.logger.Info("web front end listening", "addr", "http://"+addr)
	return s.app.Listen(addr)
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api := s.app.Group("/api")
	api.Get("/settings", s.getSettings)
	api.Put("/settings", s.putSettings)

	api.Get("/credentials", s.getCredentials)
	api.Put("/credentials/notion", s.putNotionCredentials)
	api.Put("/credentials/summarizer", s.putSummarizerCredentials)
	api.Post("/credentials/notion/test", s.testNotion)
	api.Post("/credentials/summarizer/test", s.testSummarizer)
	api.Put("/credentials/instagram", s.putInstagramSession)
	api.Post("/credentials/instagram/test", s.testInstagram)

	api.Get("/diagnostics", s.getDiagnostics)
	api.Post("/diagnostics/refresh", s.refreshDiagnostics)
	api.Post("/diagnostics/:id/fix", s.fixDiagnostic)
	api.Get("/models", s.getModels)
	api.Post("/models/:id/download", s.downloadModel)

	api.Post("/batch", s.startBatch)
	api.Post("/instagram", s.startInstagram)
	api.Post("/saved", s.startSaved)
	api.Post("/cancel", s.cancel)
	api.Get("/snapshot", s.snapshot)
	api.Get("/events", s.events)
	api.Get("/history", s.history)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/events", websocket.New(s.streamEvents))
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	settings, err := s.backend.GetSettings()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(settings)
}

func (s *Server) putSettings(c *fiber.Ctx) error {
	var settings domain.Settings
	if err := c.BodyParser(&settings); err != nil {
		return badRequest(c, "invalid settings payload")
	}
	saved, err := s.backend.SaveSettings(settings)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(saved)
}

func (s *Server) getCredentials(c *fiber.Ctx) error {
	status, err := s.backend.GetCredentials()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(status)
}

type notionCredentialsRequest struct {
	Token      string `json:"token"`
	DatabaseID string `json:"databaseId"`
}

func (s *Server) putNotionCredentials(c *fiber.Ctx) error {
	var req notionCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid credentials payload")
	}
	if err := s.backend.SaveNotionCredentials(req.Token, req.DatabaseID); err != nil {
		return badRequest(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type summarizerCredentialsRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Prompt   string `json:"prompt"`
}

func (s *Server) putSummarizerCredentials(c *fiber.Ctx) error {
	var req summarizerCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid credentials payload")
	}
	if err := s.backend.SaveSummarizerCredentials(req.Provider, req.APIKey, req.Prompt); err != nil {
		return badRequest(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) testNotion(c *fiber.Ctx) error {
	if err := s.backend.TestNotion(); err != nil {
		return c.JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) testSummarizer(c *fiber.Ctx) error {
	var req summarizerCredentialsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid payload")
		}
	}
	if err := s.backend.TestSummarizer(req.Provider); err != nil {
		return c.JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

type instagramSessionRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) putInstagramSession(c *fiber.Ctx) error {
	var req instagramSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid credentials payload")
	}
	if err := s.backend.SaveInstagramSession(req.SessionID); err != nil {
		return badRequest(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) testInstagram(c *fiber.Ctx) error {
	username, err := s.backend.TestInstagram()
	if err != nil {
		return c.JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true, "username": username})
}

func (s *Server) getDiagnostics(c *fiber.Ctx) error {
	return c.JSON(s.backend.GetDiagnostics())
}

func (s *Server) refreshDiagnostics(c *fiber.Ctx) error {
	report, err := s.backend.RefreshDiagnostics()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(report)
}

func (s *Server) fixDiagnostic(c *fiber.Ctx) error {
	report, err := s.backend.InstallOrFixDiagnostic(c.Params("id"))
	resp := fiber.Map{"report": report}
	if err != nil {
		resp["error"] = err.Error()
	}
	return c.JSON(resp)
}

func (s *Server) getModels(c *fiber.Ctx) error {
	return c.JSON(s.backend.GetWhisperModels())
}

func (s *Server) downloadModel(c *fiber.Ctx) error {
	settings, err := s.backend.DownloadWhisperModel(c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(settings)
}

type batchRequest struct {
	Paths []string `json:"paths"`
}

func (s *Server) startBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid batch payload")
	}
	job, err := s.backend.StartBatch(req.Paths)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

type instagramRequest struct {
	URLs []string `json:"urls"`
	// File is a server-side path to a text file of URLs.
	File string `json:"file"`
}

func (s *Server) startInstagram(c *fiber.Ctx) error {
	var req instagramRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid instagram payload")
	}
	urls := req.URLs
	if req.File != "" {
		fromFile, err := s.backend.LoadURLsFromFile(req.File)
		if err != nil {
			return badRequest(c, err.Error())
		}
		urls = append(urls, fromFile...)
	}
	job, err := s.backend.StartInstagramBatch(urls)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

type savedRequest struct {
	// Limit caps the number of saved videos; zero takes all of them.
	Limit int `json:"limit"`
}

func (s *Server) startSaved(c *fiber.Ctx) error {
	var req savedRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid saved posts payload")
		}
	}
	if req.Limit < 0 {
		return badRequest(c, "limit must not be negative")
	}
	job, err := s.backend.StartSavedPostsBatch(req.Limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

func (s *Server) cancel(c *fiber.Ctx) error {
	if err := s.backend.CancelBatch(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.backend.BatchSnapshot())
}

func (s *Server) snapshot(c *fiber.Ctx) error {
	return c.JSON(s.backend.BatchSnapshot())
}

func (s *Server) events(c *fiber.Ctx) error {
	since, err := parseInt(c.Query("since"), 0)
	if err != nil {
		return badRequest(c, "since must be an integer")
	}
	events := s.backend.JobEvents(int64(since))
	if events == nil {
		events = []jobs.Event{}
	}
	return c.JSON(events)
}

func (s *Server) history(c *fiber.Ctx) error {
	limit, err := parseInt(c.Query("limit"), 50)
	if err != nil {
		return badRequest(c, "limit must be an integer")
	}
	entries, err := s.backend.History(limit)
	if err != nil {
		return s.fail(c, err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return c.JSON(entries)
}

// streamEvents pushes bus events as JSON until the client goes away.
func (s *Server) streamEvents(conn *websocket.Conn) {
	defer conn.Close()

	since, _ := strconv.ParseInt(conn.Query("since", "0"), 10, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reads only detect the close; clients never send anything.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err := s.backend.Events().Follow(ctx, since, func(event jobs.Event) {
		if werr := conn.WriteJSON(event); werr != nil {
			cancel()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("event stream ended", "error", err)
	}
}

// sameOrigin refuses browser requests sent from another site. The front end
// is served by this server, so its requests carry a matching Origin or none.
func sameOrigin(c *fiber.Ctx) error {
	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" {
		return c.Next()
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || !strings.EqualFold(u.Host, string(c.Request().Host())) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cross-origin requests are not allowed"})
	}
	return c.Next()
}

// fail maps service errors to status codes.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, jobs.ErrJobAlreadyRunning), errors.Is(err, jobs.ErrNoRunningJob):
		status = fiber.StatusConflict
	case errors.Is(err, batch.ErrMissingOutputDir),
		errors.Is(err, batch.ErrSummarizerNotConfigured),
		errors.Is(err, batch.ErrPublisherNotConfigured),
		errors.Is(err, batch.ErrDownloaderNotConfigured),
		errors.Is(err, batch.ErrNoInputs),
		errors.Is(err, batch.ErrNoURLs),
		errors.Is(err, instagram.ErrNoSession),
		errors.Is(err, instagram.ErrNoSavedVideos),
		errors.Is(err, fs.ErrNotExist):
		status = fiber.StatusBadRequest
	case errors.Is(err, instagram.ErrLoginFailed):
		status = fiber.StatusUnauthorized
	}
	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func parseInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
