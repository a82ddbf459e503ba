package timetrack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arjunbot/arjun/pkg/logger"
)

const defaultBaseURL = "https://api.clockify.me/api/v1"

// Verifier checks Clockify API keys against the live API before they are
// persisted to a user's config. Report generation is out of scope here;
// only the credential handshake lives in this package.
type Verifier struct {
	baseURL string
	client  *http.Client
}

func NewVerifier() *Verifier {
	return &Verifier{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewVerifierWithBase points the verifier at an alternate endpoint.
// Used by tests against a local server.
func NewVerifierWithBase(baseURL string) *Verifier {
	v := NewVerifier()
	v.baseURL = baseURL
	return v
}

// Verify confirms the key authenticates and has at least one workspace.
// A key with no workspaces cannot produce any time data, so it is
// rejected the same as a bad key.
func (v *Verifier) Verify(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("empty api key")
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := v.get(ctx, apiKey, "/user", &user); err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	if user.ID == "" {
		return fmt.Errorf("verify user: empty user id")
	}

	var workspaces []struct {
		ID string `json:"id"`
	}
	if err := v.get(ctx, apiKey, "/workspaces", &workspaces); err != nil {
		return fmt.Errorf("verify workspaces: %w", err)
	}
	if len(workspaces) == 0 {
		return fmt.Errorf("verify workspaces: none available")
	}

	logger.DebugCF("timetrack", "Clockify key verified", map[string]any{
		"user":       user.ID,
		"workspaces": len(workspaces),
	})
	return nil
}

func (v *Verifier) get(ctx context.Context, apiKey, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
