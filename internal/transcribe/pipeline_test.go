package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleWhisperJSON = `{
  "transcription": [
    {"offsets": {"from": 0, "to": 2500}, "text": " Hello there."},
    {"offsets": {"from": 2500, "to": 65250}, "text": " General Kenobi."}
  ]
}`

// fakeRunner simulates command execution order and outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// happyRunner writes the ffmpeg output and a whisper JSON file.
func happyRunner(t *testing.T, whisperJSON string, onWhisper func(args []string)) *fakeRunner {
	t.Helper()
	return &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if strings.HasPrefix(name, "ffmpeg") {
				mustWriteFile(t, args[len(args)-1], "wav")
				return commandResult{Stdout: "ffmpeg ok"}, nil
			}
			if onWhisper != nil {
				onWhisper(args)
			}
			mustWriteFile(t, argValue(args, "-of")+".json", whisperJSON)
			return commandResult{Stdout: "whisper ok"}, nil
		},
	}
}

// TestPipelineRunSuccessWithTimestamps checks the full happy path.
func TestPipelineRunSuccessWithTimestamps(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "meeting.mp4")
	modelPath := filepath.Join(root, "ggml-base.bin")
	mustWriteFile(t, inputPath, "media")
	mustWriteFile(t, modelPath, "model")

	var whisperArgs []string
	var stages []string
	runner := happyRunner(t, sampleWhisperJSON, func(args []string) {
		whisperArgs = append([]string{}, args...)
	})

	pipeline := NewPipelineForTests("ffmpeg-custom", "whisper-custom", runner, os.MkdirTemp, os.RemoveAll)
	result, err := pipeline.Run(context.Background(), Request{
		InputPath:  inputPath,
		ModelPath:  modelPath,
		Language:   "auto",
		Timestamps: true,
		OnStage:    func(stage string) { stages = append(stages, stage) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Logs) != 2 || result.Logs[1].Command != "whisper-custom" {
		t.Fatalf("logs = %+v", result.Logs)
	}
	got := result.Transcription
	if got.Text != "Hello there. General Kenobi." {
		t.Fatalf("text = %q", got.Text)
	}
	wantDetailed := "[00:00:00.000] Hello there.\n[00:00:02.500] General Kenobi."
	if got.Detailed != wantDetailed {
		t.Fatalf("detailed = %q, want %q", got.Detailed, wantDetailed)
	}
	if got.Duration != 65.25 {
		t.Fatalf("duration = %v, want 65.25", got.Duration)
	}
	if hasArg(whisperArgs, "-l") {
		t.Fatalf("auto language should not pass -l, args=%v", whisperArgs)
	}
	if !hasArg(whisperArgs, "-oj") {
		t.Fatalf("expected JSON output flag, args=%v", whisperArgs)
	}
	if strings.Join(stages, ",") != "extracting,transcribing,parsing" {
		t.Fatalf("stages = %v", stages)
	}

	if err := result.Cleanup(); err != nil {
		t.Fatalf("cleanup error: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(result.AudioPath)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp dir cleanup, stat err = %v", err)
	}
}

// TestPipelineRunWithoutTimestampsUsesPlainText checks Detailed mirrors Text.
func TestPipelineRunWithoutTimestampsUsesPlainText(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "clip.mp4")
	modelPath := filepath.Join(root, "m.bin")
	mustWriteFile(t, inputPath, "media")
	mustWriteFile(t, modelPath, "model")

	pipeline := NewPipelineForTests("ffmpeg", "whisper-cli", happyRunner(t, sampleWhisperJSON, nil), os.MkdirTemp, os.RemoveAll)
	result, err := pipeline.Run(context.Background(), Request{InputPath: inputPath, ModelPath: modelPath})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer result.Cleanup()

	if result.Transcription.Detailed != result.Transcription.Text {
		t.Fatalf("detailed = %q, want plain text", result.Transcription.Detailed)
	}
}

// TestPipelineRunKeepAudioWritesNextToOutput checks kept audio survives cleanup.
func TestPipelineRunKeepAudioWritesNextToOutput(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "talk.mkv")
	modelPath := filepath.Join(root, "m.bin")
	audioDir := filepath.Join(root, "out")
	mustWriteFile(t, inputPath, "media")
	mustWriteFile(t, modelPath, "model")

	pipeline := NewPipelineForTests("ffmpeg", "whisper-cli", happyRunner(t, sampleWhisperJSON, nil), os.MkdirTemp, os.RemoveAll)
	result, err := pipeline.Run(context.Background(), Request{
		InputPath: inputPath,
		ModelPath: modelPath,
		KeepAudio: true,
		AudioDir:  audioDir,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := filepath.Join(audioDir, "talk.wav")
	if result.AudioPath != want {
		t.Fatalf("audio path = %q, want %q", result.AudioPath, want)
	}
	if err := result.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("kept audio removed: %v", err)
	}
}

// TestPipelineRunFFmpegFailureReturnsExtractingError checks conversion error path.
func TestPipelineRunFFmpegFailureReturnsExtractingError(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "clip.mp4")
	modelPath := filepath.Join(root, "model.bin")
	mustWriteFile(t, inputPath, "media")
	mustWriteFile(t, modelPath, "model")

	var cleaned string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{Stderr: "ffmpeg failed", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	pipeline := NewPipelineForTests(
		"ffmpeg",
		"whisper-cli",
		runner,
		os.MkdirTemp,
		func(path string) error {
			cleaned = path
			return os.RemoveAll(path)
		},
	)

	_, err := pipeline.Run(context.Background(), Request{InputPath: inputPath, ModelPath: modelPath})
	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("error type = %T, want *PipelineError", err)
	}
	if pErr.Stage != StageExtracting {
		t.Fatalf("stage = %s, want %s", pErr.Stage, StageExtracting)
	}
	if pErr.CommandLog.Command != "ffmpeg" || pErr.CommandLog.ExitCode != 1 {
		t.Fatalf("command log = %+v", pErr.CommandLog)
	}
	if strings.TrimSpace(cleaned) == "" {
		t.Fatal("expected temporary directory cleanup")
	}
}

// TestPipelineRunFixedLanguageAndModelDirectory checks model discovery.
func TestPipelineRunFixedLanguageAndModelDirectory(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "clip.mov")
	modelDir := filepath.Join(root, "models")
	mustWriteFile(t, inputPath, "media")
	// lexical sort should pick this first.
	mustWriteFile(t, filepath.Join(modelDir, "a-small.gguf"), "model")
	mustWriteFile(t, filepath.Join(modelDir, "z-large.bin"), "model")

	var usedModel, usedLanguage string
	runner := happyRunner(t, sampleWhisperJSON, func(args []string) {
		usedModel = argValue(args, "-m")
		usedLanguage = argValue(args, "-l")
	})

	pipeline := NewPipelineForTests("ffmpeg", "whisper-cli", runner, os.MkdirTemp, os.RemoveAll)
	result, err := pipeline.Run(context.Background(), Request{
		InputPath: inputPath,
		ModelPath: modelDir,
		Language:  "en",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer result.Cleanup()

	if want := filepath.Join(modelDir, "a-small.gguf"); usedModel != want {
		t.Fatalf("used model = %q, want %q", usedModel, want)
	}
	if usedLanguage != "en" {
		t.Fatalf("used language = %q, want en", usedLanguage)
	}
}

// TestPipelineRunWhisperFailureCleansTempDir checks failure cleanup path.
func TestPipelineRunWhisperFailureCleansTempDir(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "clip.mp4")
	modelPath := filepath.Join(root, "model.bin")
	mustWriteFile(t, inputPath, "media")
	mustWriteFile(t, modelPath, "model")

	var tempDir string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name == "ffmpeg" {
				outPath := args[len(args)-1]
				tempDir = filepath.Dir(outPath)
				mustWriteFile(t, outPath, "wav")
				return commandResult{}, nil
			}
			return commandResult{Stderr: "whisper failed", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	pipeline := NewPipelineForTests("ffmpeg", "whisper-cli", runner, os.MkdirTemp, os.RemoveAll)
	_, err := pipeline.Run(context.Background(), Request{InputPath: inputPath, ModelPath: modelPath})

	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("error type = %T, want *PipelineError", err)
	}
	if pErr.Stage != StageTranscribing {
		t.Fatalf("stage = %s, want %s", pErr.Stage, StageTranscribing)
	}
	if _, statErr := os.Stat(tempDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("temp dir should be removed on failure, stat err = %v", statErr)
	}
}

// TestPipelineRunMalformedWhisperOutput checks the parsing stage error.
func TestPipelineRunMalformedWhisperOutput(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "clip.mp4")
	modelPath := filepath.Join(root, "model.bin")
	mustWriteFile(t, inputPath, "media")
	mustWriteFile(t, modelPath, "model")

	pipeline := NewPipelineForTests("ffmpeg", "whisper-cli", happyRunner(t, "{broken", nil), os.MkdirTemp, os.RemoveAll)
	_, err := pipeline.Run(context.Background(), Request{InputPath: inputPath, ModelPath: modelPath})

	var pErr *PipelineError
	if !errors.As(err, &pErr) || pErr.Stage != StageParsing {
		t.Fatalf("error = %v, want parsing stage error", err)
	}
}

// TestPipelineRunRequiresModelPath checks validation for missing model path.
func TestPipelineRunRequiresModelPath(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "clip.mp4")
	mustWriteFile(t, inputPath, "media")

	pipeline := NewPipelineForTests("ffmpeg", "whisper-cli", &fakeRunner{}, os.MkdirTemp, os.RemoveAll)
	_, err := pipeline.Run(context.Background(), Request{InputPath: inputPath})

	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("error type = %T, want *PipelineError", err)
	}
	if pErr.Stage != StageTranscribing {
		t.Fatalf("stage = %s, want %s", pErr.Stage, StageTranscribing)
	}
}

// TestFormatTimestamp checks hour rollover and millisecond rounding.
func TestFormatTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:        "00:00:00.000",
		2.5:      "00:00:02.500",
		3661.042: "01:01:01.042",
		-1:       "00:00:00.000",
	}
	for in, want := range cases {
		if got := FormatTimestamp(in); got != want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

// TestBuildFFmpegArgs verifies deterministic ffmpeg command arguments.
func TestBuildFFmpegArgs(t *testing.T) {
	args := buildFFmpegArgs("/in.mp4", "/tmp/out.wav")
	want := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", "/in.mp4",
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"/tmp/out.wav",
	}

	if len(args) != len(want) {
		t.Fatalf("args len = %d, want %d", len(args), len(want))
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

// TestBuildWhisperArgsFixedLanguage verifies language flag for fixed mode.
func TestBuildWhisperArgsFixedLanguage(t *testing.T) {
	args := buildWhisperArgs("/m.bin", "/audio.wav", "/out/base", "ru")
	if got := argValue(args, "-l"); got != "ru" {
		t.Fatalf("language arg = %q, want ru", got)
	}
}

// mustWriteFile creates parent directory and writes file content.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
