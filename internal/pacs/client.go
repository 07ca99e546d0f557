// Package pacs uploads converted DICOM files to the image archive through
// its REST ingestion endpoint.
package pacs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// UploadError marks a rejected archive upload. A single failed file aborts
// the whole publish stage; no partial-success state is recorded.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("ArchiveUploadFailed: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// TokenProvider issues the bearer token for the archive uploader service
// account.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL string
	tokens  TokenProvider
	http    *http.Client
}

func NewClient(baseURL string, tokens TokenProvider) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// UploadFiles sends every file to the ingestion endpoint, one request per
// file. Upload order is insignificant but every file must succeed.
func (c *Client) UploadFiles(ctx context.Context, paths []string) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &UploadError{Err: fmt.Errorf("acquiring uploader token: %w", err)}
	}

	for _, path := range paths {
		if err := c.uploadFile(ctx, path, token); err != nil {
			return &UploadError{Err: err}
		}
	}
	zap.S().Named("pacs").Infow("uploaded artifacts to archive", "files", len(paths))
	return nil
}

func (c *Client) uploadFile(ctx context.Context, path string, token string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	url := c.baseURL + "/instances"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/dicom")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("uploading %s: archive returned %d: %s", path, resp.StatusCode, string(body))
	}
	return nil
}
