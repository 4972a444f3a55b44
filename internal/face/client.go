package face

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the face recognition microservice. Images travel as base64
// data URLs in JSON bodies.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. Skip short-circuits every call with deterministic
// results for dev environments without the face service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// skipEncoding is the fixed vector returned in Skip mode.
var skipEncoding = Encoding{0.1, 0.2, 0.3}

// ValidateQuality asks the face service whether the image is usable.
func (c *Client) ValidateQuality(ctx context.Context, image string) (bool, string, error) {
	if c.Skip {
		return true, "", nil
	}
	if image == "" {
		return false, "empty image", nil
	}

	var out struct {
		OK     bool   `json:"ok"`
		Reason string `json:"reason"`
	}
	if err := c.post(ctx, "/validate", map[string]string{"image_data": image}, &out); err != nil {
		return false, "", err
	}
	return out.OK, out.Reason, nil
}

// Encode requests an encoding for a base64 image.
func (c *Client) Encode(ctx context.Context, image string) (Encoding, error) {
	if c.Skip {
		return skipEncoding, nil
	}
	if image == "" {
		return nil, errors.New("image required")
	}

	var out struct {
		Encoding Encoding `json:"encoding"`
		Message  string   `json:"message"`
	}
	if err := c.post(ctx, "/encode", map[string]string{"image_data": image}, &out); err != nil {
		return nil, err
	}
	if len(out.Encoding) == 0 {
		if out.Message != "" {
			return nil, errors.New(out.Message)
		}
		return nil, errors.New("no face detected in image")
	}
	return out.Encoding, nil
}

// Compare submits two encodings and returns the service's comparison.
func (c *Client) Compare(ctx context.Context, reference, candidate Encoding) (Comparison, error) {
	if c.Skip {
		return Comparison{IsMatch: true, Confidence: 92.5, Distance: 0.25}, nil
	}

	var out Comparison
	err := c.post(ctx, "/compare", map[string]Encoding{
		"reference": reference,
		"candidate": candidate,
	}, &out)
	return out, err
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
