package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// RemoteVerifier asks the identity provider to verify tokens instead of
// parsing them locally. Used when the provider does not share its signing
// key.
type RemoteVerifier struct {
	BaseURL string
	HTTP    *http.Client
}

// NewRemoteVerifier creates a verifier calling the provider at baseURL.
func NewRemoteVerifier(baseURL string) *RemoteVerifier {
	return &RemoteVerifier{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify POSTs the token to the provider's verify endpoint. A non-2xx
// response or transport failure is ErrUnauthenticated; the provider's
// reasons are not surfaced.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	body, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTP.Do(req)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, ErrUnauthenticated
	}

	var out struct {
		SubjectID string `json:"subject_id"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.SubjectID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{SubjectID: out.SubjectID, Email: out.Email}, nil
}
