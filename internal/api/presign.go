package api

import (
	"context"
	"fmt"

	"github.com/sensorgrid/datasync/internal/transfer"
)

// The Client is the transfer engine's control plane: it issues
// presigned part URLs and drives the multipart lifecycle.
var _ transfer.Control = (*Client)(nil)

// CreateMultipartUpload registers an upload and returns one presigned
// PUT URL per planned part.
func (c *Client) CreateMultipartUpload(ctx context.Context, key string, parts int) (*transfer.MultipartUpload, error) {
	params := map[string]any{
		"key":   key,
		"parts": parts,
	}
	var result struct {
		UploadID string   `json:"upload_id"`
		URLs     []string `json:"urls"`
	}
	if err := c.call(ctx, "files.create_multipart_upload", params, &result); err != nil {
		return nil, err
	}
	if result.UploadID == "" {
		return nil, fmt.Errorf("create multipart upload %s: empty upload id", key)
	}
	return &transfer.MultipartUpload{
		UploadID: result.UploadID,
		PartURLs: result.URLs,
	}, nil
}

// CompleteMultipartUpload finalizes an upload from its ordered part
// tokens.
func (c *Client) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []transfer.CompletedPart) error {
	params := map[string]any{
		"key":       key,
		"upload_id": uploadID,
		"etag_list": parts,
	}
	return c.call(ctx, "files.complete_multipart_upload", params, nil)
}

// AbortMultipartUpload discards an upload and its stored parts.
func (c *Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	params := map[string]any{
		"key":       key,
		"upload_id": uploadID,
	}
	return c.call(ctx, "files.abort_multipart_upload", params, nil)
}

// CreateDownloadURL issues a presigned GET URL for an object. Size is
// -1 when the server does not report one.
func (c *Client) CreateDownloadURL(ctx context.Context, key string) (*transfer.DownloadTarget, error) {
	params := map[string]string{"key": key}
	var result struct {
		URL  string `json:"url"`
		Size *int64 `json:"size"`
	}
	if err := c.call(ctx, "files.create_download_url", params, &result); err != nil {
		return nil, err
	}
	if result.URL == "" {
		return nil, fmt.Errorf("create download url %s: empty url", key)
	}
	size := int64(-1)
	if result.Size != nil {
		size = *result.Size
	}
	return &transfer.DownloadTarget{URL: result.URL, Size: size}, nil
}
