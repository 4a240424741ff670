package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sensorgrid/datasync/internal/retry"
)

// partClient moves single parts over presigned object-storage URLs.
type partClient struct {
	http   *http.Client
	policy *retry.Policy
}

// putPart uploads one byte range with an explicit Content-Length and
// returns the part token from the ETag response header. Storage
// backends reject completion when the token keeps its surrounding
// quotes, so they are stripped here.
func (c *partClient) putPart(ctx context.Context, rawURL string, src io.ReaderAt, offset, length int64) (string, error) {
	var etag string
	err := c.policy.Do(ctx, rawURL, func(ctx context.Context) error {
		body := io.NewSectionReader(src, offset, length)
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, rawURL, body)
		if err != nil {
			return err
		}
		req.ContentLength = length

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return statusError(resp)
		}
		io.Copy(io.Discard, resp.Body)

		etag = strings.Trim(resp.Header.Get("ETag"), `"`)
		if etag == "" {
			return fmt.Errorf("no etag in part upload response")
		}
		return nil
	})
	return etag, err
}

// getPart downloads one byte range with a ranged GET and writes it at
// the part offset. Out-of-order completion is fine since writes are
// positional.
func (c *partClient) getPart(ctx context.Context, rawURL string, dst io.WriterAt, offset, length int64) error {
	return c.policy.Do(ctx, rawURL, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		// 200 shows up when the object fits a single part and the
		// backend ignores Range.
		if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}

		w := io.NewOffsetWriter(dst, offset)
		n, err := io.CopyN(w, resp.Body, length)
		if err != nil {
			return fmt.Errorf("read part body after %d of %d bytes: %w", n, length, err)
		}
		return nil
	})
}

// headSize resolves the object size when the control plane does not
// report one alongside the presigned URL.
func (c *partClient) headSize(ctx context.Context, rawURL string) (int64, error) {
	var size int64
	err := c.policy.Do(ctx, rawURL, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return statusError(resp)
		}
		if resp.ContentLength < 0 {
			return fmt.Errorf("no content length in HEAD response")
		}
		size = resp.ContentLength
		return nil
	})
	return size, err
}

// statusError converts a non-success response into a classified error,
// keeping a short body excerpt for diagnostics.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &retry.StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
