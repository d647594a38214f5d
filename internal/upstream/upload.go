package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/matheus3301/microchat/internal/chatsync"
)

// progressReader reports cumulative bytes read.
type progressReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress chatsync.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}

// Upload implements chatsync.Uploader. The body is streamed as the
// "content" part of a multipart request; progress follows the bytes handed
// to the transport.
func (c *Client) Upload(ctx context.Context, meta chatsync.FileMeta, body io.Reader, progress chatsync.ProgressFunc) (int64, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUploadParts(mw, meta, &progressReader{r: body, total: meta.Size, progress: progress})
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media/store", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// Uploads may outlast the default request timeout; ctx bounds them.
	env, err := c.doWith(c.stream, req)
	_ = pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return 0, fmt.Errorf("media/store %s: %w", meta.Name, err)
	}
	var file struct {
		ID flexInt `json:"id"`
	}
	if len(env.File) == 0 {
		return 0, fmt.Errorf("media/store %s: response has no file", meta.Name)
	}
	if err := json.Unmarshal(env.File, &file); err != nil {
		return 0, fmt.Errorf("media/store %s: %w", meta.Name, err)
	}
	if file.ID <= 0 {
		return 0, fmt.Errorf("media/store %s: invalid file id %d", meta.Name, file.ID)
	}
	return int64(file.ID), nil
}

func writeUploadParts(mw *multipart.Writer, meta chatsync.FileMeta, content io.Reader) error {
	if err := mw.WriteField("filename", meta.Name); err != nil {
		return err
	}
	if err := mw.WriteField("mimetype", meta.MimeType); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("content", meta.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, content)
	return err
}
