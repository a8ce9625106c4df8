package diff

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultChangeLogLines is how much of a changes log is kept.
const DefaultChangeLogLines = 100

// ChangeLogName is the changes log file kept in the sessions directory.
const ChangeLogName = "changes.log"

// ReadChangeLog returns the last maxLines lines of a changes log, or "" when
// the log does not exist or is empty.
func ReadChangeLog(path string, maxLines int) (string, error) {
	if maxLines <= 0 {
		maxLines = DefaultChangeLogLines
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("open changes log: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, maxLines)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == maxLines {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read changes log: %w", err)
	}

	return strings.TrimSpace(strings.Join(ring, "\n")), nil
}
