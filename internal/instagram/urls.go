// Package instagram downloads the video of public Instagram posts.
package instagram

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var shortcodeRe = regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([^/?]+)`)

// ExtractShortcode returns the post shortcode of url, or "" when url is not
// a post, reel or tv link.
func ExtractShortcode(url string) string {
	m := shortcodeRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsPostURL reports whether line looks like an Instagram post link.
func IsPostURL(line string) bool {
	if !strings.Contains(line, "instagram.com") {
		return false
	}
	return strings.Contains(line, "/p/") || strings.Contains(line, "/reel/") || strings.Contains(line, "/tv/")
}

// FilterURLs trims lines and keeps only post links, in order.
func FilterURLs(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && IsPostURL(line) {
			out = append(out, line)
		}
	}
	return out
}

// LoadURLFile reads one URL per line from path and filters it.
func LoadURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return FilterURLs(lines), nil
}
