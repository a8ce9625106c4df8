// Package relay connects the chat client to the monitoring agent through a
// file mailbox in the sessions directory, and turns each question into a
// model prompt with project context.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Mailbox file names inside the sessions directory.
const (
	RequestFile    = "buddy_request.tmp"
	ResponseFile   = "buddy_response.tmp"
	ProcessingFile = "buddy_processing.tmp"
	HeartbeatFile  = "buddy_heartbeat.tmp"
)

// DefaultMaxReadBytes caps how much of a mailbox or context file is read.
const DefaultMaxReadBytes = 10 * 1024 * 1024

// TruncatedMarker replaces the middle of files larger than the read cap.
const TruncatedMarker = "\n\n[... middle portion truncated due to size ...]\n\n"

var (
	// ErrNoRequest is returned by TakeRequest when no request is waiting.
	ErrNoRequest = errors.New("no pending request")

	// ErrNoResponse is returned by TakeResponse when no response is waiting.
	ErrNoResponse = errors.New("no pending response")

	// ErrAgentGone is returned by WaitResponse when nothing is processing the
	// request and the agent heartbeat is stale.
	ErrAgentGone = errors.New("monitoring agent is not responding")
)

// Mailbox is the file-based channel between chat client and agent. Each
// slot holds at most one message.
type Mailbox struct {
	dir          string
	maxReadBytes int64
	now          func() time.Time
}

// NewMailbox creates a mailbox in dir. A maxReadBytes of zero or less uses
// DefaultMaxReadBytes.
func NewMailbox(dir string, maxReadBytes int) *Mailbox {
	if maxReadBytes <= 0 {
		maxReadBytes = DefaultMaxReadBytes
	}
	return &Mailbox{dir: dir, maxReadBytes: int64(maxReadBytes), now: time.Now}
}

// Dir returns the mailbox directory.
func (m *Mailbox) Dir() string {
	return m.dir
}

// Ensure creates the mailbox directory.
func (m *Mailbox) Ensure() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	return nil
}

func (m *Mailbox) path(name string) string {
	return filepath.Join(m.dir, name)
}

// SubmitRequest posts a question for the agent.
func (m *Mailbox) SubmitRequest(question string) error {
	if err := m.Ensure(); err != nil {
		return err
	}
	return writeAtomic(m.path(RequestFile), []byte(question))
}

// HasRequest reports whether a request is waiting.
func (m *Mailbox) HasRequest() bool {
	return exists(m.path(RequestFile))
}

// TakeRequest reads and removes the pending request.
func (m *Mailbox) TakeRequest() (string, error) {
	return m.take(RequestFile, ErrNoRequest)
}

// WriteResponse posts the answer for the chat client.
func (m *Mailbox) WriteResponse(response string) error {
	if err := m.Ensure(); err != nil {
		return err
	}
	return writeAtomic(m.path(ResponseFile), []byte(response))
}

// TakeResponse reads and removes the pending response.
func (m *Mailbox) TakeResponse() (string, error) {
	return m.take(ResponseFile, ErrNoResponse)
}

func (m *Mailbox) take(name string, missing error) (string, error) {
	path := m.path(name)
	content, err := ReadBounded(path, m.maxReadBytes)
	if errors.Is(err, os.ErrNotExist) {
		return "", missing
	}
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove %s: %w", name, err)
	}
	return content, nil
}

// SetProcessing marks a request as being worked on.
func (m *Mailbox) SetProcessing() error {
	if err := m.Ensure(); err != nil {
		return err
	}
	return os.WriteFile(m.path(ProcessingFile), nil, 0644)
}

// ClearProcessing removes the processing mark.
func (m *Mailbox) ClearProcessing() error {
	return removeIfExists(m.path(ProcessingFile))
}

// IsProcessing reports whether the agent is working on a request.
func (m *Mailbox) IsProcessing() bool {
	return exists(m.path(ProcessingFile))
}

// Beat records that the agent is alive.
func (m *Mailbox) Beat() error {
	stamp := strconv.FormatInt(m.now().UnixNano(), 10)
	return writeAtomic(m.path(HeartbeatFile), []byte(stamp))
}

// LastBeat returns the time of the last heartbeat.
func (m *Mailbox) LastBeat() (time.Time, error) {
	data, err := os.ReadFile(m.path(HeartbeatFile))
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse heartbeat: %w", err)
	}
	return time.Unix(0, nanos), nil
}

// AgentAlive reports whether the agent beat within maxAge.
func (m *Mailbox) AgentAlive(maxAge time.Duration) bool {
	last, err := m.LastBeat()
	if err != nil {
		return false
	}
	return m.now().Sub(last) <= maxAge
}

// Reset removes stale request, response and processing files. With
// heartbeat set it also removes the heartbeat.
func (m *Mailbox) Reset(heartbeat bool) error {
	names := []string{RequestFile, ResponseFile, ProcessingFile}
	if heartbeat {
		names = append(names, HeartbeatFile)
	}
	var errs []error
	for _, name := range names {
		if err := removeIfExists(m.path(name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WaitResponse polls until a response arrives. It gives up with
// ErrAgentGone once the request has been taken, nothing is processing and
// the heartbeat is older than maxAge.
func (m *Mailbox) WaitResponse(ctx context.Context, poll, maxAge time.Duration, tick func()) (string, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		resp, err := m.TakeResponse()
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrNoResponse) {
			return "", err
		}

		if !m.IsProcessing() && !m.HasRequest() && !m.AgentAlive(maxAge) {
			// A response may have landed between the checks
			if resp, err := m.TakeResponse(); err == nil {
				return resp, nil
			}
			return "", ErrAgentGone
		}
		if tick != nil {
			tick()
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReadBounded reads a file as text. Files larger than maxBytes are read as
// their first and last halves joined by TruncatedMarker. Invalid UTF-8 is
// dropped.
func ReadBounded(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	if maxBytes <= 0 || info.Size() <= maxBytes {
		data, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return strings.ToValidUTF8(string(data), ""), nil
	}

	half := maxBytes / 2
	head := make([]byte, half)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	tail := make([]byte, half)
	if _, err := f.ReadAt(tail, info.Size()-half); err != nil && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return strings.ToValidUTF8(string(head), "") + TruncatedMarker + strings.ToValidUTF8(string(tail), ""), nil
}

// writeAtomic writes through a temporary sibling so readers never see a
// partial message.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
