package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// readURLsFromFile reads one URL per line, skipping blank lines, comments
// (#-prefixed), and lines that don't parse as an absolute http(s) URL.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening url file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := validateURL(line); err != nil {
			fmt.Fprintf(os.Stderr, "skipping invalid url on line %d: %s (%v)\n", lineNum, line, err)
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading url file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no valid urls found in %s", path)
	}
	return urls, nil
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("url is missing a host")
	}
	return nil
}
