package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"video-transcriber/internal/domain"
)

// Pipeline stages reported through Request.OnStage.
const (
	StageExtracting   = "extracting"
	StageTranscribing = "transcribing"
	StageParsing      = "parsing"
)

// Request contains input media and execution callbacks for one run.
type Request struct {
	InputPath  string
	ModelPath  string
	Language   string
	Timestamps bool

	// KeepAudio writes the extracted WAV into AudioDir instead of a
	// temporary workspace.
	KeepAudio bool
	AudioDir  string

	OnStage func(stage string)
	OnLog   func(log CommandLog)
}

// Result contains the transcription, the audio artifact and command logs.
type Result struct {
	AudioPath     string
	Transcription domain.Transcription
	Logs          []CommandLog
	tempDir       string
}

// Cleanup removes temporary artifacts created by Run.
func (r *Result) Cleanup() error {
	if r == nil || r.tempDir == "" {
		return nil
	}

	if err := os.RemoveAll(r.tempDir); err != nil {
		return err
	}
	r.tempDir = ""
	return nil
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Pipeline runs ffmpeg audio extraction followed by whisper.cpp.
type Pipeline struct {
	ffmpegPath  string
	whisperPath string
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	mkdirAll    func(path string, perm os.FileMode) error
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)
}

// NewPipeline constructs the production pipeline. Empty binary paths fall
// back to the names found on PATH.
func NewPipeline(ffmpegPath, whisperPath string) *Pipeline {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(whisperPath) == "" {
		whisperPath = "whisper-cli"
	}
	return &Pipeline{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		mkdirAll:    os.MkdirAll,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}

// Run extracts audio, transcribes it and parses whisper's JSON output.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, &PipelineError{
			Stage:   StageExtracting,
			Message: "input media path is required",
		}
	}
	if _, err := p.stat(req.InputPath); err != nil {
		return Result{}, &PipelineError{
			Stage:   StageExtracting,
			Message: fmt.Sprintf("cannot access input media: %s", req.InputPath),
			Err:     err,
		}
	}

	modelPath, err := p.resolveModelPath(req.ModelPath)
	if err != nil {
		return Result{}, &PipelineError{
			Stage:   StageTranscribing,
			Message: err.Error(),
			Err:     err,
		}
	}

	tempDir, err := p.mkdirTemp("", "video-transcriber-*")
	if err != nil {
		return Result{}, &PipelineError{
			Stage:   StageExtracting,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	fail := func(pe *PipelineError) (Result, error) {
		_ = p.removeAll(tempDir)
		return Result{}, pe
	}

	audioPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	if req.KeepAudio && strings.TrimSpace(req.AudioDir) != "" {
		if err := p.mkdirAll(req.AudioDir, 0o755); err != nil {
			return fail(&PipelineError{
				Stage:   StageExtracting,
				Message: fmt.Sprintf("cannot create audio directory: %s", req.AudioDir),
				Err:     err,
			})
		}
		audioPath = filepath.Join(req.AudioDir, baseName(req.InputPath)+".wav")
	}

	emitStage(req.OnStage, StageExtracting)
	ffmpegArgs := buildFFmpegArgs(req.InputPath, audioPath)
	ffmpegLog, runErr := p.exec(ctx, req, p.ffmpegPath, ffmpegArgs)
	if runErr != nil {
		return fail(&PipelineError{
			Stage:      StageExtracting,
			Message:    "ffmpeg audio extraction failed",
			CommandLog: ffmpegLog,
			Err:        runErr,
		})
	}
	if _, err := p.stat(audioPath); err != nil {
		return fail(&PipelineError{
			Stage:      StageExtracting,
			Message:    "ffmpeg completed but audio file is missing",
			CommandLog: ffmpegLog,
			Err:        err,
		})
	}

	emitStage(req.OnStage, StageTranscribing)
	outBase := filepath.Join(tempDir, "transcript")
	whisperArgs := buildWhisperArgs(modelPath, audioPath, outBase, req.Language)
	whisperLog, runErr := p.exec(ctx, req, p.whisperPath, whisperArgs)
	if runErr != nil {
		return fail(&PipelineError{
			Stage:      StageTranscribing,
			Message:    "whisper.cpp transcription failed",
			CommandLog: whisperLog,
			Err:        runErr,
		})
	}

	emitStage(req.OnStage, StageParsing)
	raw, err := p.readFile(outBase + ".json")
	if err != nil {
		return fail(&PipelineError{
			Stage:      StageParsing,
			Message:    "whisper.cpp completed but transcript .json file is missing",
			CommandLog: whisperLog,
			Err:        err,
		})
	}
	transcription, err := parseWhisperJSON(raw, req.Timestamps)
	if err != nil {
		return fail(&PipelineError{
			Stage:      StageParsing,
			Message:    "cannot parse whisper.cpp output",
			CommandLog: whisperLog,
			Err:        err,
		})
	}

	return Result{
		AudioPath:     audioPath,
		Transcription: transcription,
		Logs:          []CommandLog{ffmpegLog, whisperLog},
		tempDir:       tempDir,
	}, nil
}

func (p *Pipeline) exec(ctx context.Context, req Request, name string, args []string) (CommandLog, error) {
	res, err := p.runner.Run(ctx, name, args...)
	log := CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if req.OnLog != nil {
		req.OnLog(log)
	}
	return log, err
}

func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// whisperOutput mirrors the subset of whisper.cpp -oj output we read.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperJSON builds a Transcription. Detailed carries one
// "[HH:MM:SS.mmm] text" line per segment when timestamps are enabled.
func parseWhisperJSON(raw []byte, timestamps bool) (domain.Transcription, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Transcription{}, err
	}

	var (
		text     strings.Builder
		detailed []string
		segments = make([]domain.Segment, 0, len(out.Transcription))
	)
	for _, seg := range out.Transcription {
		s := domain.Segment{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  strings.TrimSpace(seg.Text),
		}
		if s.Text == "" {
			continue
		}
		segments = append(segments, s)
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(s.Text)
		detailed = append(detailed, fmt.Sprintf("[%s] %s", FormatTimestamp(s.Start), s.Text))
	}

	t := domain.Transcription{
		Text:     text.String(),
		Segments: segments,
	}
	t.Detailed = t.Text
	if timestamps {
		t.Detailed = strings.Join(detailed, "\n")
	}
	if n := len(segments); n > 0 {
		t.Duration = segments[n-1].End
	}
	return t, nil
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(seconds*1000 + 0.5)
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// resolveModelPath returns model file path from file or directory input.
func (p *Pipeline) resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := p.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := p.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	var modelNames []string
	for _, entry := range entries {
		if !entry.IsDir() && IsModelFile(entry.Name()) {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// IsModelFile reports whether name has a ggml model extension.
func IsModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".bin" || ext == ".gguf"
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildFFmpegArgs builds extraction args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for JSON transcript export.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-np",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

func baseName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "transcript"
	}
	return name
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	ffmpegPath string,
	whisperPath string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
) *Pipeline {
	return &Pipeline{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		runner:      runner,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		stat:        os.Stat,
		mkdirAll:    os.MkdirAll,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}
