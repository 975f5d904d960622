package ctxbuild

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ParseKeyValueFile reads a GITHUB_ENV/GITHUB_OUTPUT-style file: each
// line is either `key=value` or a heredoc `key<<DELIM` followed by
// literal lines up to a line equal to DELIM. Repeated keys follow
// last-key-wins, the same convention used elsewhere in this codebase
// for merging repeated map keys (see internal/matrix's include-row
// override decision).
func ParseKeyValueFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if delimIdx := strings.Index(line, "<<"); delimIdx >= 0 && isValidKey(line[:delimIdx]) {
			key := line[:delimIdx]
			delim := line[delimIdx+2:]
			if delim == "" {
				return nil, fmt.Errorf("empty heredoc delimiter for key %q", key)
			}
			var body []string
			closed := false
			for scanner.Scan() {
				bodyLine := scanner.Text()
				if bodyLine == delim {
					closed = true
					break
				}
				body = append(body, bodyLine)
			}
			if !closed {
				return nil, fmt.Errorf("unterminated heredoc for key %q (expected delimiter %q)", key, delim)
			}
			result[key] = strings.Join(body, "\n")
			continue
		}
		if eqIdx := strings.Index(line, "="); eqIdx >= 0 {
			key := line[:eqIdx]
			result[key] = line[eqIdx+1:]
			continue
		}
		return nil, fmt.Errorf("malformed env-file line: %q", line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ParsePathFile reads a GITHUB_PATH file: one path per line, in
// encountered order. The caller places them, in this order, ahead of
// the path entries it already has.
func ParsePathFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// ReadSummaryFile returns a GITHUB_STEP_SUMMARY file's contents
// verbatim, or "" if the file is empty.
func ReadSummaryFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SerializeKeyValueFile writes kv back out in `key=value` form, using
// a heredoc when a value contains a newline. Used by tests to assert
// parse/serialize round-trips.
func SerializeKeyValueFile(kv map[string]string) string {
	var b strings.Builder
	for k, v := range kv {
		if strings.Contains(v, "\n") {
			fmt.Fprintf(&b, "%s<<EOF\n%s\nEOF\n", k, v)
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	return b.String()
}

func isValidKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
