package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const defaultContentType = "application/octet-stream"

// FilePart is one attachment of a create request. Open is called once
// while the body streams and must yield exactly Size bytes.
type FilePart struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// CreateRequest is the payload for POST /api/create.
type CreateRequest struct {
	Content string
	Files   []FilePart
	// Progress receives cumulative bytes sent and the total body size.
	Progress func(sent, total int64)
}

// Empty reports whether the request carries neither text nor files.
func (r CreateRequest) Empty() bool {
	return r.Content == "" && len(r.Files) == 0
}

// Percent converts a byte count to a whole percentage of total.
func Percent(sent, total int64) int {
	if total <= 0 {
		return 100
	}
	if sent >= total {
		return 100
	}
	return int(math.Round(float64(sent) * 100 / float64(total)))
}

// Create posts a new item. The body is streamed with an exact
// Content-Length so progress can be reported against a known total.
func (c *Client) Create(ctx context.Context, req CreateRequest) (string, error) {
	boundary, err := randomBoundary()
	if err != nil {
		return "", err
	}

	total, err := multipartLength(boundary, req)
	if err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	go func() {
		mw := multipart.NewWriter(pw)
		if err := mw.SetBoundary(boundary); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writeParts(mw, req, true))
	}()

	body := &progressReader{r: pr, total: total, fn: req.Progress}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/create", body)
	if err != nil {
		pr.Close()
		return "", err
	}
	httpReq.ContentLength = total
	httpReq.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	c.setAuth(httpReq)

	resp, err := c.upload.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	return readPayload(resp)
}

func multipartLength(boundary string, req CreateRequest) (int64, error) {
	counter := &countingWriter{}
	mw := multipart.NewWriter(counter)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}
	if err := writeParts(mw, req, false); err != nil {
		return 0, err
	}
	total := counter.n
	for _, file := range req.Files {
		if file.Size < 0 {
			return 0, fmt.Errorf("file %q has negative size", file.Name)
		}
		total += file.Size
	}
	return total, nil
}

// writeParts emits the form. When withData is false only the framing is
// written, which is what multipartLength measures.
func writeParts(mw *multipart.Writer, req CreateRequest, withData bool) error {
	if req.Content != "" {
		if err := mw.WriteField("content", req.Content); err != nil {
			return err
		}
	}
	for _, file := range req.Files {
		part, err := mw.CreatePart(fileHeader(file))
		if err != nil {
			return err
		}
		if !withData {
			continue
		}
		if err := copyFile(part, file); err != nil {
			return err
		}
	}
	return mw.Close()
}

func copyFile(dst io.Writer, file FilePart) error {
	if file.Open == nil {
		return fmt.Errorf("file %q has no reader", file.Name)
	}
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	n, err := io.Copy(dst, io.LimitReader(rc, file.Size+1))
	if err != nil {
		return err
	}
	if n != file.Size {
		return fmt.Errorf("file %q changed size: expected %d bytes, read %d", file.Name, file.Size, n)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(file FilePart) textproto.MIMEHeader {
	contentType := strings.TrimSpace(file.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	h.Set("Content-Type", contentType)
	return h
}

func randomBoundary() (string, error) {
	var buf [30]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    func(sent, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}

func (p *progressReader) Close() error {
	if closer, ok := p.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
