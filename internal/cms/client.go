// Package cms is the read/submit client for the headless CMS (Strapi). The
// portal only consumes published content; it never writes content entries.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/shaheenweb/portal/internal/form"
	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/model"
)

const maxResponseBytes = 10 << 20 // 10MB

// Client talks to one CMS deployment.
type Client struct {
	baseURL string
	metrics *observability.Metrics
	http    *http.Client
}

// NewClient builds a client for the CMS at baseURL. metrics may be nil.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// BaseURL returns the configured CMS base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// MediaURL joins a CMS-relative media path onto the base URL. Absolute URLs
// pass through untouched.
func (c *Client) MediaURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if u, err := url.Parse(c.baseURL); err == nil && u.Scheme != "" {
		return u.Scheme + "://" + u.Host + path
	}
	return c.baseURL + path
}

// HealthCheck probes the CMS root. Any response that is not a server error
// counts as reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_health", nil)
	if err != nil {
		return fmt.Errorf("cms: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cms: unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("cms: health returned status %d", resp.StatusCode)
	}
	return nil
}

// envelope is the standard Strapi response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GetForm fetches a form schema by its document id, localized when locale is
// non-empty.
func (c *Client) GetForm(ctx context.Context, documentID, locale string) (model.FormSchema, error) {
	endpoint := fmt.Sprintf("%s/api/form-builder/forms/%s", c.baseURL, url.PathEscape(documentID))
	if locale != "" {
		endpoint += "?locale=" + url.QueryEscape(locale)
	}

	var schema model.FormSchema
	if err := c.getJSON(ctx, "get_form", endpoint, &schema); err != nil {
		return model.FormSchema{}, err
	}
	return schema, nil
}

// GetPage fetches a page entry by slug with its content sections populated.
func (c *Client) GetPage(ctx context.Context, slug, locale string) (json.RawMessage, error) {
	if locale == "" {
		locale = "en"
	}
	params := url.Values{}
	params.Set("filters[slug][$eq]", slug)
	params.Set("locale", locale)
	params.Set("populate[content_sections][populate]", "*")
	params.Set("populate[sidebar_sections][populate]", "*")
	params.Set("populate[forms][populate]", "*")
	params.Set("populate[featured_image]", "*")

	endpoint := c.baseURL + "/api/pages?" + params.Encode()

	var raw json.RawMessage
	if err := c.getJSON(ctx, "get_page", endpoint, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// getJSON performs a GET and decodes the data member of the CMS envelope
// into out. A raw target receives the data member verbatim.
func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("cms: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordCMSRequest(operation, 0, time.Since(started))
		return fmt.Errorf("cms: request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordCMSRequest(operation, resp.StatusCode, time.Since(started))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("cms: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return model.NewNotFoundError("content not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cms: request failed with status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("cms: decode response: %w", err)
	}
	payload := env.Data
	if payload == nil {
		// Some endpoints respond without the envelope.
		payload = body
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = payload
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("cms: decode payload: %w", err)
	}
	return nil
}

// SubmitForm serializes the wizard state into a multipart request and posts
// it to the form-builder submit endpoint. Object-valued fields are written
// as JSON strings, scalars as plain strings, and every selected file is
// appended under its field id.
//
// The returned error is non-nil only for transport failures; a server-side
// rejection comes back as an unaccepted receipt carrying the server's
// user-facing message when one was provided.
func (c *Client) SubmitForm(
	ctx context.Context,
	target string,
	values model.FormValues,
	files model.FileValues,
) (form.SubmitReceipt, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for fieldID, value := range values {
		encoded, err := value.MultipartString()
		if err != nil {
			return form.SubmitReceipt{}, fmt.Errorf("cms: encode field %q: %w", fieldID, err)
		}
		if err := writer.WriteField(fieldID, encoded); err != nil {
			return form.SubmitReceipt{}, fmt.Errorf("cms: write field %q: %w", fieldID, err)
		}
	}

	for fieldID, uploads := range files {
		for _, upload := range uploads {
			part, err := createFilePart(writer, fieldID, upload)
			if err != nil {
				return form.SubmitReceipt{}, fmt.Errorf("cms: write file %q: %w", fieldID, err)
			}
			if _, err := part.Write(upload.Content); err != nil {
				return form.SubmitReceipt{}, fmt.Errorf("cms: write file %q: %w", fieldID, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return form.SubmitReceipt{}, fmt.Errorf("cms: finalize payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/form-builder/forms/%s/submit", c.baseURL, url.PathEscape(target))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return form.SubmitReceipt{}, fmt.Errorf("cms: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordCMSRequest("submit", 0, time.Since(started))
		return form.SubmitReceipt{}, fmt.Errorf("cms: submit failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordCMSRequest("submit", resp.StatusCode, time.Since(started))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return form.SubmitReceipt{}, fmt.Errorf("cms: read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return form.SubmitReceipt{Accepted: true}, nil
	}

	var env envelope
	if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && env.Error != nil {
		return form.SubmitReceipt{Accepted: false, Message: env.Error.Message}, nil
	}
	return form.SubmitReceipt{Accepted: false}, nil
}

// createFilePart opens a multipart section for one uploaded file, carrying
// its original filename and content type.
func createFilePart(writer *multipart.Writer, fieldID string, upload model.FileUpload) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldID, upload.Name))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	return writer.CreatePart(header)
}
