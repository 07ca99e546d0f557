package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// UploadError marks a rejected registry call.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("RegistryUploadFailed: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// TokenProvider issues the bearer token for the registry uploader service
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
		http:    &http.Client{Timeout: time.Minute},
	}
}

// FindPatientRef searches the registry for a patient record carrying the
// given business identifier. It returns the reference ("Patient/3") of the
// first match, or an empty string when no record exists.
func (c *Client) FindPatientRef(ctx context.Context, identifier string) (string, error) {
	searchURL := fmt.Sprintf("%s/Patient?identifier=%s", c.baseURL, url.QueryEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	if err := c.authorize(ctx, req); err != nil {
		return "", &UploadError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("searching patient: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UploadError{Err: fmt.Errorf("searching patient: registry returned %d", resp.StatusCode)}
	}

	var result bundle
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &UploadError{Err: fmt.Errorf("decoding patient search response: %w", err)}
	}
	if len(result.Entry) == 0 {
		zap.S().Named("fhir").Infow("no existing patient record", "identifier", identifier)
		return "", nil
	}

	resource := result.Entry[0].Resource
	ref := fmt.Sprintf("%s/%s", resource.ResourceType, resource.ID)
	zap.S().Named("fhir").Infow("found existing patient record", "identifier", identifier, "reference", ref)
	return ref, nil
}

// CreatePatient uploads a new patient record and returns its reference.
func (c *Client) CreatePatient(ctx context.Context, patient *Patient) (string, error) {
	var created struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	if err := c.post(ctx, "/Patient", patient, &created); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s/%s", created.ResourceType, created.ID)
	zap.S().Named("fhir").Infow("created patient record", "reference", ref)
	return ref, nil
}

// CreateImagingStudy uploads the study-level record.
func (c *Client) CreateImagingStudy(ctx context.Context, study *ImagingStudy) error {
	if err := c.post(ctx, "/ImagingStudy", study, nil); err != nil {
		return err
	}
	zap.S().Named("fhir").Info("created imaging study record")
	return nil
}

func (c *Client) post(ctx context.Context, path string, resource any, out any) error {
	body, err := json.Marshal(resource)
	if err != nil {
		return &UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &UploadError{Err: err}
	}
	req.Header.Set("Accept", "application/fhir+json")
	req.Header.Set("Content-Type", "application/fhir+json")
	if err := c.authorize(ctx, req); err != nil {
		return &UploadError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UploadError{Err: fmt.Errorf("posting %s: %w", path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UploadError{Err: fmt.Errorf("posting %s: registry returned %d: %s", path, resp.StatusCode, string(detail))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &UploadError{Err: fmt.Errorf("decoding %s response: %w", path, err)}
		}
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquiring uploader token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
