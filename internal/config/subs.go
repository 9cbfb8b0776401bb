package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadCommunities reads community names from path, one per line. Blank
// lines and lines starting with # are skipped.
func ReadCommunities(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("no subreddits to collect: cannot open %s (create it with one subreddit name per line): %w", path, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, strings.TrimPrefix(line, "r/"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return names, nil
}
