package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/vodgrabba/internal/config"
	"github.com/iconidentify/vodgrabba/internal/domain"
)

// accessTokenQuery is the persisted PlaybackAccessToken_Template operation the web player sends.
const accessTokenQuery = `query PlaybackAccessToken_Template($login: String!, $isLive: Boolean!, $vodID: ID!, $isVod: Boolean!, $playerType: String!) {  streamPlaybackAccessToken(channelName: $login, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isLive) {    value    signature    __typename  }  videoPlaybackAccessToken(id: $vodID, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isVod) {    value    signature    __typename  }}`

// noCredential is sent as the Authorization header when no OAuth token is known.
const noCredential = "undefined"

// errorBodyLimit caps how much of an upstream error body is folded into errors.
const errorBodyLimit = 1024

// Client talks to the Twitch GQL API and the usher playlist service.
type Client struct {
	httpClient *http.Client
	gqlURL     string
	vodBaseURL string
	clientID   string
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a new Twitch client.
func NewClient(cfg config.TwitchConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		gqlURL:     cfg.GQLURL,
		vodBaseURL: cfg.VODBaseURL,
		clientID:   cfg.ClientID,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
}

type gqlRequest struct {
	OperationName string       `json:"operationName"`
	Query         string       `json:"query"`
	Variables     gqlVariables `json:"variables"`
}

type gqlVariables struct {
	IsLive     bool   `json:"isLive"`
	Login      string `json:"login"`
	IsVod      bool   `json:"isVod"`
	VodID      string `json:"vodID"`
	PlayerType string `json:"playerType"`
}

type accessTokenResponse struct {
	Data struct {
		VideoPlaybackAccessToken *struct {
			Signature *string `json:"signature"`
			Value     *string `json:"value"`
		} `json:"videoPlaybackAccessToken"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Authorize exchanges a VOD ID for a playback signature/token pair.
// bearer is an OAuth token; when empty the request is sent anonymously.
// A single attempt is made.
func (c *Client) Authorize(ctx context.Context, id domain.VideoID, bearer string) (*domain.PlaybackAuthorization, error) {
	payload, err := json.Marshal(gqlRequest{
		OperationName: "PlaybackAccessToken_Template",
		Query:         accessTokenQuery,
		Variables: gqlVariables{
			IsLive:     false,
			Login:      "",
			IsVod:      true,
			VodID:      id.String(),
			PlayerType: "site",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrAuthRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gqlURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrAuthRequestFailed, err)
	}

	req.Header.Set("Client-ID", c.clientID)
	if bearer != "" {
		req.Header.Set("Authorization", "OAuth "+bearer)
	} else {
		req.Header.Set("Authorization", noCredential)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("requesting playback access token",
		"video_id", id,
		"authenticated", bearer != "",
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrAuthRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrAuthRequestFailed, resp.StatusCode, readSnippet(resp.Body))
	}

	var tokenResp accessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrMalformedAuthResponse, err)
	}

	token := tokenResp.Data.VideoPlaybackAccessToken
	if token == nil {
		if len(tokenResp.Errors) > 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrMalformedAuthResponse, tokenResp.Errors[0].Message)
		}
		return nil, fmt.Errorf("%w: videoPlaybackAccessToken was not present in response", domain.ErrMalformedAuthResponse)
	}
	if token.Signature == nil || *token.Signature == "" {
		return nil, fmt.Errorf("%w: auth signature was not present in response", domain.ErrMalformedAuthResponse)
	}
	if token.Value == nil || *token.Value == "" {
		return nil, fmt.Errorf("%w: auth value was not present in response", domain.ErrMalformedAuthResponse)
	}

	return &domain.PlaybackAuthorization{
		Signature: *token.Signature,
		Value:     *token.Value,
	}, nil
}

// ManifestURL builds the signed usher playlist URL for a VOD.
func (c *Client) ManifestURL(id domain.VideoID, auth *domain.PlaybackAuthorization) string {
	return fmt.Sprintf("%s/%s.m3u8?allow_source=true&sig=%s&token=%s",
		strings.TrimRight(c.vodBaseURL, "/"),
		id,
		auth.Signature,
		URLSafe(auth.Value),
	)
}

// FetchManifest downloads the signed HLS playlist. The caller must close the
// returned body.
func (c *Client) FetchManifest(ctx context.Context, id domain.VideoID, auth *domain.PlaybackAuthorization) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ManifestURL(id, auth), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrManifestFetchFailed, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("fetching manifest", "video_id", id)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrManifestFetchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrManifestFetchFailed, resp.StatusCode, readSnippet(resp.Body))
	}

	return resp.Body, nil
}

func readSnippet(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	return strings.TrimSpace(string(body))
}
