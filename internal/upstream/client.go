package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/utils"
)

const (
	// DefaultBaseURL is the platform's v2 API root.
	DefaultBaseURL = "https://api.twitter.com/2"

	// MaxPageSize caps max_results on the bookmarks endpoint. The
	// platform allows more, but larger pages burn through the bookmark
	// rate-limit window; caller-requested values above this are silently
	// clamped, not rejected.
	MaxPageSize = 20

	// DefaultPageSize is used when the caller does not ask for a size.
	DefaultPageSize = 10

	defaultTimeout = 10 * time.Second
)

// Field selectors sent on every bookmarks request.
const (
	bookmarkExpansions  = "author_id,attachments.media_keys"
	bookmarkTweetFields = "id,text,created_at,public_metrics,context_annotations,entities,attachments"
	bookmarkUserFields  = "id,name,username,profile_image_url,verified"
	bookmarkMediaFields = "url,preview_image_url,type,width,height"
	userInfoFields      = "id,name,username,profile_image_url,verified"
)

// Config configures a Client for one user's tokens.
type Config struct {
	AccessToken  string
	RefreshToken string

	// BaseURL overrides DefaultBaseURL (tests, mock upstream).
	BaseURL string

	// OAuth is required only for RefreshAccessToken.
	OAuth *oauth2.Config

	// HTTPClient overrides the default 10s-timeout client.
	HTTPClient *http.Client
}

// Client is a thin wrapper over the platform's v2 endpoints. All calls
// carry the bearer access token; every non-2xx response is translated
// into a typed domain error with the body's detail preserved.
type Client struct {
	baseURL      string
	http         *http.Client
	oauth        *oauth2.Config
	accessToken  string
	refreshToken string
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:      baseURL,
		http:         httpClient,
		oauth:        cfg.OAuth,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
	}
}

// Me resolves the identity of the token holder.
func (c *Client) Me(ctx context.Context) (*domain.UserInfo, error) {
	q := url.Values{}
	q.Set("user.fields", userInfoFields)

	var out struct {
		Data User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me", q, nil, &out); err != nil {
		return nil, err
	}
	return &domain.UserInfo{
		ID:        out.Data.ID,
		Name:      out.Data.Name,
		Username:  out.Data.Username,
		AvatarURL: out.Data.ProfileImageURL,
		Verified:  out.Data.Verified,
	}, nil
}

// BookmarksOptions selects a page of the bookmarks endpoint.
type BookmarksOptions struct {
	// MaxResults is clamped to [1, MaxPageSize]; 0 means DefaultPageSize.
	MaxResults int

	// PaginationToken continues a previous page, empty for the first.
	PaginationToken string
}

// Bookmarks fetches a single page of the user's bookmarks. Pagination is
// the caller's job via Meta.NextToken on the returned page.
func (c *Client) Bookmarks(ctx context.Context, userID string, opts BookmarksOptions) (*RawPage, error) {
	size := opts.MaxResults
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(size))
	if opts.PaginationToken != "" {
		q.Set("pagination_token", opts.PaginationToken)
	}
	q.Set("expansions", bookmarkExpansions)
	q.Set("tweet.fields", bookmarkTweetFields)
	q.Set("user.fields", bookmarkUserFields)
	q.Set("media.fields", bookmarkMediaFields)

	var page RawPage
	if err := c.do(ctx, http.MethodGet, "/users/"+userID+"/bookmarks", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AddBookmark bookmarks a post for the user. The platform deduplicates,
// so calling twice is observably the same as once.
func (c *Client) AddBookmark(ctx context.Context, userID, tweetID string) error {
	body := map[string]string{"tweet_id": tweetID}
	return c.do(ctx, http.MethodPost, "/users/"+userID+"/bookmarks", nil, body, nil)
}

// RemoveBookmark removes a bookmarked post. Idempotent from the caller's
// perspective.
func (c *Client) RemoveBookmark(ctx context.Context, userID, tweetID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+userID+"/bookmarks/"+tweetID, nil, nil, nil)
}

// RefreshAccessToken exchanges the refresh token for a new access/refresh
// pair and swaps the client over to it.
func (c *Client) RefreshAccessToken(ctx context.Context) (*oauth2.Token, error) {
	if c.refreshToken == "" {
		return nil, domain.E(domain.KindAuth, "no refresh token available")
	}
	if c.oauth == nil {
		return nil, domain.E(domain.KindAuth, "token refresh not configured")
	}

	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, domain.Wrap(domain.KindAuth, "failed to refresh access token", err)
	}

	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	return tok, nil
}

// do issues one authenticated request and decodes the 2xx response into
// out (when non-nil). Non-2xx responses become typed domain errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return domain.Wrap(domain.KindUpstream, "failed to encode request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return domain.Wrap(domain.KindUpstream, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Wrap(domain.KindUpstream, "upstream request failed", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Wrap(domain.KindUpstream, "failed to decode upstream response", err)
	}
	return nil
}

// classify maps a non-2xx upstream response to the error taxonomy,
// keeping the body's detail string for diagnostics.
func classify(resp *http.Response) error {
	detail := resp.Status
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail != "" {
			detail = apiErr.Detail
		}
	}

	msg := fmt.Sprintf("upstream returned %d - %s", resp.StatusCode, detail)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return domain.E(domain.KindAuth, msg)
	case http.StatusForbidden:
		return domain.E(domain.KindPermission, msg)
	case http.StatusNotFound:
		return domain.E(domain.KindNotFound, msg)
	case http.StatusTooManyRequests:
		return domain.E(domain.KindRateLimit, msg)
	default:
		return domain.E(domain.KindUpstream, msg)
	}
}
