package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FormsClient reads submission details from the storefront's form plugin over
// its REST API, authenticated with a WordPress application password.
type FormsClient struct {
	baseURL     string
	username    string
	appPassword string
	http        *http.Client
}

// NewFormsClient constructs a FormsClient.
func NewFormsClient(baseURL, username, appPassword string) *FormsClient {
	return &FormsClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		username:    username,
		appPassword: appPassword,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

type entryEmailResponse struct {
	Email string `json:"email"`
}

// EntryEmail returns the buyer email recorded on a form entry.
func (c *FormsClient) EntryEmail(ctx context.Context, entryID int64) (string, error) {
	body, err := c.get(ctx, "/wp-json/custom/v1/entry-email/?entry_id="+strconv.FormatInt(entryID, 10))
	if err != nil {
		return "", fmt.Errorf("fetch entry email: %w", err)
	}

	var parsed entryEmailResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal entry email response: %w", err)
	}
	if parsed.Email == "" {
		return "", errors.New("entry email response missing email")
	}

	return parsed.Email, nil
}

// EntryAttachment is the document uploaded with a form entry.
type EntryAttachment struct {
	Filename string
	Data     []byte
}

type entryFileResponse struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// EntryAttachment downloads the document uploaded with a form entry, for
// forwarding to the seller.
func (c *FormsClient) EntryAttachment(ctx context.Context, entryID int64) (*EntryAttachment, error) {
	body, err := c.get(ctx, "/wp-json/custom/v1/entry-file/?entry_id="+strconv.FormatInt(entryID, 10))
	if err != nil {
		return nil, fmt.Errorf("fetch entry file: %w", err)
	}

	var parsed entryFileResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal entry file response: %w", err)
	}
	if parsed.URL == "" {
		return nil, errors.New("entry file response missing url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build file download request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPassword)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download entry file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download entry file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read entry file: %w", err)
	}

	filename := parsed.Filename
	if filename == "" {
		filename = "entry-" + strconv.FormatInt(entryID, 10)
	}

	return &EntryAttachment{Filename: filename, Data: data}, nil
}

func (c *FormsClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPassword)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("forms api status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
