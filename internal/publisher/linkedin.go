package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prismatic/internal/services"
)

const (
	linkedInPlatform        = "linkedin"
	linkedInDefaultBaseURL  = "https://api.linkedin.com"
	linkedInDefaultTimeout  = 30 * time.Second
	linkedInCharacterLimit  = 3000
	linkedInMaxErrorCapture = 512
)

// LinkedInConfig captures the runtime settings for the LinkedIn API client.
type LinkedInConfig struct {
	BaseURL        string
	TimeoutSeconds int
	CharacterLimit int
}

// LinkedIn publishes posts through the LinkedIn REST API.
type LinkedIn struct {
	baseURL        string
	characterLimit int
	httpClient     *http.Client
}

// LinkedInOption customizes the client.
type LinkedInOption func(*LinkedIn)

// WithLinkedInHTTPClient overrides the default HTTP client.
func WithLinkedInHTTPClient(client *http.Client) LinkedInOption {
	return func(l *LinkedIn) {
		if client != nil {
			l.httpClient = client
		}
	}
}

// NewLinkedIn constructs a LinkedIn publisher using the supplied configuration.
func NewLinkedIn(cfg LinkedInConfig, opts ...LinkedInOption) *LinkedIn {
	timeout := linkedInDefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	limit := cfg.CharacterLimit
	if limit <= 0 {
		limit = linkedInCharacterLimit
	}
	client := &LinkedIn{
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		characterLimit: limit,
		httpClient:     &http.Client{Timeout: timeout},
	}
	if client.baseURL == "" {
		client.baseURL = linkedInDefaultBaseURL
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Platform returns the platform key.
func (l *LinkedIn) Platform() string { return linkedInPlatform }

// CharacterLimit returns the maximum post length in runes.
func (l *LinkedIn) CharacterLimit() int { return l.characterLimit }

// ResolveIdentity calls the userinfo endpoint and returns the member URN.
func (l *LinkedIn) ResolveIdentity(ctx context.Context, accessToken string) (string, error) {
	if strings.TrimSpace(accessToken) == "" {
		return "", services.Wrap(services.ErrValidation, "linkedin", "userinfo", "access token required", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v2/userinfo", nil)
	if err != nil {
		return "", fmt.Errorf("linkedin userinfo: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "linkedin", "userinfo", "http error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "linkedin", "userinfo", "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError("linkedin", "userinfo", resp.StatusCode, body)
	}

	var payload struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", services.Wrap(services.ErrPlatform, "linkedin", "userinfo", "decode response", err)
	}
	sub := strings.TrimSpace(payload.Sub)
	if sub == "" {
		return "", services.Wrap(services.ErrPlatform, "linkedin", "userinfo", "response missing subject", nil)
	}
	return "urn:li:person:" + sub, nil
}

// Publish creates a text share attributed to the request's member identity.
// The platform's identifier for the new post is returned.
func (l *LinkedIn) Publish(ctx context.Context, pub PublishRequest) (PublishResult, error) {
	var empty PublishResult
	if strings.TrimSpace(pub.AccessToken) == "" {
		return empty, services.Wrap(services.ErrValidation, "linkedin", "publish", "access token required", nil)
	}
	if strings.TrimSpace(pub.MemberIdentity) == "" {
		return empty, services.Wrap(services.ErrValidation, "linkedin", "publish", "member identity required", nil)
	}
	if strings.TrimSpace(pub.Content) == "" {
		return empty, services.Wrap(services.ErrValidation, "linkedin", "publish", "content is empty", nil)
	}

	payload := ugcPostRequest{
		Author:         pub.MemberIdentity,
		LifecycleState: "PUBLISHED",
	}
	payload.SpecificContent.ShareContent.ShareCommentary.Text = pub.Content
	payload.SpecificContent.ShareContent.ShareMediaCategory = "NONE"
	payload.Visibility.MemberNetworkVisibility = "PUBLIC"

	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("linkedin publish: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v2/ugcPosts", bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("linkedin publish: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+pub.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "linkedin", "publish", "http error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "linkedin", "publish", "read body", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return empty, statusError("linkedin", "publish", resp.StatusCode, body)
	}

	externalID := strings.TrimSpace(resp.Header.Get("X-RestLi-Id"))
	if externalID == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &created); err == nil {
			externalID = strings.TrimSpace(created.ID)
		}
	}
	if externalID == "" {
		return empty, services.Wrap(services.ErrPlatform, "linkedin", "publish", "response missing post id", nil)
	}
	return PublishResult{ExternalPostID: externalID}, nil
}

type ugcPostRequest struct {
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		ShareContent struct {
			ShareCommentary struct {
				Text string `json:"text"`
			} `json:"shareCommentary"`
			ShareMediaCategory string `json:"shareMediaCategory"`
		} `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility struct {
		MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
	} `json:"visibility"`
}

// statusError classifies an HTTP failure. Auth failures are configuration
// problems the operator must fix; rate limits and server errors may clear on
// retry; everything else is a platform rejection.
func statusError(component, operation string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if runes := []rune(snippet); len(runes) > linkedInMaxErrorCapture {
		snippet = string(runes[:linkedInMaxErrorCapture]) + "..."
	}
	message := fmt.Sprintf("http %d", status)
	if snippet != "" {
		message = fmt.Sprintf("http %d: %s", status, snippet)
	}

	marker := services.ErrPlatform
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		marker = services.ErrConfiguration
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		marker = services.ErrTransient
	}
	return services.Wrap(marker, component, operation, message, nil)
}
