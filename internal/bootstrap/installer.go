package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"
)

const installCommandTimeout = 45 * time.Minute

// recipe is one package manager's command sequence for a tool.
type recipe struct {
	manager string
	steps   [][]string
}

// toolRecipes maps tool -> platform -> recipes in preference order.
var toolRecipes = map[string]map[string][]recipe{
	"ffmpeg": {
		"windows": {
			{"winget", [][]string{{"winget", "install", "--id", "Gyan.FFmpeg", "--exact", "--accept-source-agreements", "--accept-package-agreements"}}},
			{"choco", [][]string{{"choco", "install", "ffmpeg", "-y"}}},
		},
		"darwin": {
			{"brew", [][]string{{"brew", "install", "ffmpeg"}}},
		},
		"linux": {
			{"apt-get", [][]string{{"apt-get", "update"}, {"apt-get", "install", "-y", "ffmpeg"}}},
			{"dnf", [][]string{{"dnf", "install", "-y", "ffmpeg"}}},
			{"pacman", [][]string{{"pacman", "-Sy", "--noconfirm", "ffmpeg"}}},
			{"brew", [][]string{{"brew", "install", "ffmpeg"}}},
		},
	},
	"whisper.cpp": {
		"windows": {
			{"winget", [][]string{{"winget", "install", "--id", "ggerganov.whisper.cpp", "--exact", "--accept-source-agreements", "--accept-package-agreements"}}},
			{"scoop", [][]string{{"scoop", "install", "whisper-cpp"}}},
		},
		"darwin": {
			{"brew", [][]string{{"brew", "install", "whisper-cpp"}}},
		},
		"linux": {
			{"apt-get", [][]string{{"apt-get", "update"}, {"apt-get", "install", "-y", "whisper-cpp"}}},
			{"pacman", [][]string{{"pacman", "-Sy", "--noconfirm", "whisper.cpp"}}},
			{"brew", [][]string{{"brew", "install", "whisper-cpp"}}},
		},
	},
}

// installer runs package manager recipes. The hooks default to the host
// system.
type installer struct {
	goos     string
	lookPath func(name string) (string, error)
	exec     func(ctx context.Context, name string, args ...string) ([]byte, error)
	timeout  time.Duration
}

func newInstaller() *installer {
	return &installer{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		exec: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		timeout: installCommandTimeout,
	}
}

func (in *installer) platform() string {
	switch in.goos {
	case "windows", "darwin":
		return in.goos
	default:
		return "linux"
	}
}

func (in *installer) has(name string) bool {
	_, err := in.lookPath(name)
	return err == nil
}

// install tries each available package manager until one succeeds.
func (in *installer) install(tool string) error {
	recipes := toolRecipes[tool][in.platform()]
	if len(recipes) == 0 {
		return fmt.Errorf("no install recipe for %s on %s", tool, in.goos)
	}

	var failures []string
	for _, r := range recipes {
		if !in.has(r.manager) {
			continue
		}
		if err := in.runSteps(r); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", r.manager, err))
			continue
		}
		return nil
	}
	if len(failures) == 0 {
		return fmt.Errorf("no supported package manager found on %s", in.goos)
	}
	return errors.New(strings.Join(failures, " | "))
}

func (in *installer) runSteps(r recipe) error {
	for _, step := range r.steps {
		if err := in.runMaybeElevated(step); err != nil {
			return err
		}
	}
	return nil
}

// runMaybeElevated retries system package managers through pkexec or
// non-interactive sudo on linux.
func (in *installer) runMaybeElevated(step []string) error {
	if len(step) == 0 {
		return fmt.Errorf("empty command")
	}

	attempts := [][]string{step}
	if in.platform() == "linux" && needsRoot(step[0]) {
		if in.has("pkexec") {
			attempts = append(attempts, append([]string{"pkexec"}, step...))
		}
		if in.has("sudo") {
			attempts = append(attempts, append([]string{"sudo", "-n"}, step...))
		}
	}

	var errs []string
	for _, cmd := range attempts {
		err := in.run(cmd)
		if err == nil {
			return nil
		}
		errs = append(errs, err.Error())
	}
	return errors.New(strings.Join(errs, " | "))
}

func (in *installer) run(cmd []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), in.timeout)
	defer cancel()

	output, err := in.exec(ctx, cmd[0], cmd[1:]...)
	if err == nil {
		return nil
	}
	line := strings.Join(cmd, " ")
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", line, in.timeout)
	}
	if out := clip(strings.TrimSpace(string(output)), 500); out != "" {
		return fmt.Errorf("%s failed: %w (%s)", line, err, out)
	}
	return fmt.Errorf("%s failed: %w", line, err)
}

func needsRoot(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	}
	return false
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ensureLocalBinOnPATH puts <configDir>/bin first on PATH so tools dropped
// there resolve without a system install.
func ensureLocalBinOnPATH(configDir string) error {
	bin := filepath.Join(configDir, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		return err
	}

	path := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(path) {
		if filepath.Clean(entry) == bin {
			return nil
		}
	}
	if path == "" {
		return os.Setenv("PATH", bin)
	}
	return os.Setenv("PATH", bin+string(os.PathListSeparator)+path)
}
