package upstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/matheus3301/microchat/internal/chatsync"
)

const maxEventSize = 1024 * 1024

// Dial implements chatsync.Dialer. The server authenticates the stream with
// the access_token query parameter.
func (c *Client) Dial(ctx context.Context) (chatsync.Stream, error) {
	token := c.Token()
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	u := c.baseURL + "/api/events/?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode}
	}
	return NewEventReader(resp.Body), nil
}

// EventReader splits a text/event-stream body into frames. Frames larger
// than the size limit are skipped whole; the stream stays usable.
type EventReader struct {
	body   io.ReadCloser
	reader *bufio.Reader
	limit  int
}

// NewEventReader reads frames from body. Closing the reader closes body.
func NewEventReader(body io.ReadCloser) *EventReader {
	return &EventReader{body: body, reader: bufio.NewReaderSize(body, 64*1024), limit: maxEventSize}
}

// Next returns the next frame. Comment lines and frames without data are
// skipped. At the end of the body it returns io.EOF.
func (r *EventReader) Next() (chatsync.Frame, error) {
	var name string
	var data []string
	size := 0
	oversized := false
	for {
		line, long, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return chatsync.Frame{}, io.EOF
			}
			return chatsync.Frame{}, fmt.Errorf("read event stream: %w", err)
		}
		if line == "" && !long {
			if oversized || len(data) == 0 {
				name, data, size, oversized = "", nil, 0, false
				continue
			}
			if name == "" {
				name = "message"
			}
			return chatsync.Frame{Name: name, Data: []byte(strings.Join(data, "\n"))}, nil
		}
		if long {
			oversized = true
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			size += len(value) + 1
			if size > r.limit {
				oversized = true
				continue
			}
			data = append(data, value)
		}
	}
}

// readLine returns one line without its terminator. A line longer than the
// limit is consumed and reported as long with no content.
func (r *EventReader) readLine() (string, bool, error) {
	var buf []byte
	long := false
	for {
		chunk, err := r.reader.ReadSlice('\n')
		if !long {
			if len(buf)+len(chunk) > r.limit+2 {
				long, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		break
	}
	if long {
		return "", true, nil
	}
	line := strings.TrimSuffix(string(buf), "\n")
	return strings.TrimSuffix(line, "\r"), false, nil
}

// Close implements chatsync.Stream.
func (r *EventReader) Close() error { return r.body.Close() }
