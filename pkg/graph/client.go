package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// DefaultBaseURL is the Microsoft Graph v1.0 endpoint
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	// MaxBatchSize is the largest number of sub-requests accepted by $batch
	MaxBatchSize = 20

	maxPages = 10
)

var defaultScopes = []string{
	"offline_access",
	"User.Read",
	"User.ReadBasic.All",
	"People.Read",
	"Mail.Read",
	"Chat.Read",
	"Team.ReadBasic.All",
	"Channel.ReadBasic.All",
	"ChannelMessage.Read.All",
}

// Credentials configures the delegated token used for every call
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
}

// APIError is a non-2xx response from the collaboration API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph: status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is a read-only client for the collaboration API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client whose token refreshes through the Microsoft identity platform
// when a refresh token is configured, and is used as-is otherwise.
func NewClient(ctx context.Context, baseURL string, creds Credentials) *Client {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}

	var tokenSource oauth2.TokenSource
	if creds.RefreshToken != "" && creds.ClientID != "" {
		tenant := creds.TenantID
		if tenant == "" {
			tenant = "common"
		}
		config := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
			Scopes:       defaultScopes,
		}
		// Force a refresh on first use, the stored access token may be stale
		token.Expiry = time.Now()
		tokenSource = config.TokenSource(ctx, token)
	} else {
		tokenSource = oauth2.StaticTokenSource(token)
	}

	return NewClientWithHTTP(baseURL, oauth2.NewClient(ctx, tokenSource))
}

// NewClientWithHTTP creates a client over an already-authenticated http.Client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &payload) == nil {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
	}
	return apiErr
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// list follows @odata.nextLink until limit items are collected (limit <= 0 reads every page)
func list[T any](ctx context.Context, c *Client, path string, limit int) ([]T, error) {
	var items []T
	next := path
	for pages := 0; next != "" && pages < maxPages; pages++ {
		var p page[T]
		if err := c.getJSON(ctx, next, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Value...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
		next = p.NextLink
	}
	return items, nil
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func graphTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Me returns the signed-in user
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	path := withQuery("/me", url.Values{"$select": {"id,displayName,mail,userPrincipalName"}})
	if err := c.getJSON(ctx, path, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Manager returns the user's manager, or nil if there is none
func (c *Client) Manager(ctx context.Context) (*User, error) {
	var u User
	path := withQuery("/me/manager", url.Values{"$select": {"id,displayName,mail,userPrincipalName"}})
	if err := c.getJSON(ctx, path, &u); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// DirectReports lists the user's direct reports
func (c *Client) DirectReports(ctx context.Context) ([]User, error) {
	path := withQuery("/me/directReports", url.Values{"$select": {"id,displayName,mail,userPrincipalName"}})
	return list[User](ctx, c, path, 0)
}

// People lists the user's most relevant collaborators
func (c *Client) People(ctx context.Context, top int) ([]User, error) {
	params := url.Values{"$top": {fmt.Sprint(top)}}
	return list[User](ctx, c, withQuery("/me/people", params), top)
}

// JoinedTeams lists the teams the user belongs to
func (c *Client) JoinedTeams(ctx context.Context) ([]Team, error) {
	return list[Team](ctx, c, "/me/joinedTeams", 0)
}

// Channels lists the channels of a team
func (c *Client) Channels(ctx context.Context, teamID string) ([]Channel, error) {
	path := withQuery("/teams/"+url.PathEscape(teamID)+"/channels", url.Values{"$select": {"id,displayName,webUrl,membershipType"}})
	return list[Channel](ctx, c, path, 0)
}

// ChannelMessages lists the newest root messages of a channel with their replies
func (c *Client) ChannelMessages(ctx context.Context, teamID, channelID string, top int) ([]ChatMessage, error) {
	path := fmt.Sprintf("/teams/%s/channels/%s/messages", url.PathEscape(teamID), url.PathEscape(channelID))
	params := url.Values{"$top": {fmt.Sprint(top)}, "$expand": {"replies"}}
	return list[ChatMessage](ctx, c, withQuery(path, params), top)
}

// Chats lists the user's chats with their last message preview
func (c *Client) Chats(ctx context.Context, top int) ([]Chat, error) {
	params := url.Values{"$top": {fmt.Sprint(top)}, "$expand": {"lastMessagePreview"}}
	return list[Chat](ctx, c, withQuery("/me/chats", params), top)
}

// ChatMessages lists the newest messages of a chat
func (c *Client) ChatMessages(ctx context.Context, chatID string, top int) ([]ChatMessage, error) {
	params := url.Values{"$top": {fmt.Sprint(top)}}
	return list[ChatMessage](ctx, c, withQuery("/me/chats/"+url.PathEscape(chatID)+"/messages", params), top)
}

// InboxMessages lists inbox mail received at or before cutoff, newest first
func (c *Client) InboxMessages(ctx context.Context, cutoff time.Time, top int) ([]Message, error) {
	params := url.Values{
		"$select":  {"id,conversationId,subject,bodyPreview,from,receivedDateTime,webLink,isRead"},
		"$filter":  {"receivedDateTime le " + graphTime(cutoff)},
		"$orderby": {"receivedDateTime desc"},
		"$top":     {fmt.Sprint(top)},
	}
	return list[Message](ctx, c, withQuery("/me/mailFolders/inbox/messages", params), top)
}

// SentConversations maps conversation ids to the newest time the user sent mail in them since the given time
func (c *Client) SentConversations(ctx context.Context, since time.Time) (map[string]time.Time, error) {
	params := url.Values{
		"$select": {"conversationId,sentDateTime"},
		"$filter": {"sentDateTime ge " + graphTime(since)},
		"$top":    {"200"},
	}
	msgs, err := list[Message](ctx, c, withQuery("/me/mailFolders/sentitems/messages", params), 0)
	if err != nil {
		return nil, err
	}
	sent := make(map[string]time.Time, len(msgs))
	for _, m := range msgs {
		if m.SentDateTime.After(sent[m.ConversationID]) {
			sent[m.ConversationID] = m.SentDateTime
		}
	}
	return sent, nil
}

// UserByEmail looks up a directory user, returning nil when no user matches
func (c *Client) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := c.getJSON(ctx, UserByEmailPath(email), &u); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UserByEmailPath is the relative request path for a user lookup
func UserByEmailPath(email string) string {
	return "/users/" + url.PathEscape(email) + "?$select=id,mail,displayName"
}

// PhotoPath is the relative request path for a user's small photo
func PhotoPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/photos/48x48/$value"
}

// Photo downloads a user's photo. Returns nil data when the user has none.
func (c *Client) Photo(ctx context.Context, userID string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, PhotoPath(userID), nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read photo: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Batch sends up to MaxBatchSize sub-requests in one call
func (c *Client) Batch(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if len(requests) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds limit of %d", len(requests), MaxBatchSize)
	}

	payload, err := json.Marshal(map[string]interface{}{"requests": requests})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/$batch", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Responses []BatchResponse `json:"responses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}
	return out.Responses, nil
}

// DataURL converts a binary batch response (base64 JSON string body) into a data URL
func DataURL(resp BatchResponse) (string, bool) {
	if resp.Status != http.StatusOK || len(resp.Body) == 0 {
		return "", false
	}
	var encoded string
	if err := json.Unmarshal(resp.Body, &encoded); err != nil || encoded == "" {
		return "", false
	}
	contentType := "image/jpeg"
	for k, v := range resp.Headers {
		if strings.EqualFold(k, "Content-Type") && v != "" {
			contentType = v
		}
	}
	return "data:" + contentType + ";base64," + encoded, true
}

// EncodeDataURL builds a data URL from raw bytes
func EncodeDataURL(data []byte, contentType string) string {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
