package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"snipe-console/internal/domain"
)

// Status fetches bot status and the confirmed settings.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, "status", http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveBasic persists the basic settings patch.
func (c *Client) SaveBasic(ctx context.Context, patch domain.BasicPatch) error {
	return c.do(ctx, "save_basic", http.MethodPost, "/api/settings/basic", patch, nil)
}

// SaveDetection persists the detection settings patch.
func (c *Client) SaveDetection(ctx context.Context, patch domain.DetectionPatch) error {
	return c.do(ctx, "save_detection", http.MethodPost, "/api/settings/detection", patch, nil)
}

// SaveFilter persists the filter settings patch.
func (c *Client) SaveFilter(ctx context.Context, patch domain.FilterPatch) error {
	return c.do(ctx, "save_filter", http.MethodPost, "/api/settings/filter", patch, nil)
}

type globalSnipeRequest struct {
	domain.GlobalSnipePatch
	PropagationMode domain.PropagationMode `json:"propagationMode"`
	ApplyToExisting bool                   `json:"applyToExisting"`
}

// SaveGlobalSnipe persists the global snipe patch together with the
// propagation mode in force at save time.
func (c *Client) SaveGlobalSnipe(ctx context.Context, patch domain.GlobalSnipePatch, mode domain.PropagationMode) error {
	req := globalSnipeRequest{
		GlobalSnipePatch: patch,
		PropagationMode:  mode,
		ApplyToExisting:  mode == domain.PropagateAllExisting,
	}
	return c.do(ctx, "save_global_snipe", http.MethodPost, "/api/settings/global-snipe", req, nil)
}

func adminsPath(list domain.AdminList) (string, error) {
	if !list.IsValid() {
		return "", fmt.Errorf("unknown admin list %q", list)
	}
	return "/api/admins/" + string(list), nil
}

// Admins fetches one admin list.
func (c *Client) Admins(ctx context.Context, list domain.AdminList) ([]domain.AdminEntry, error) {
	path, err := adminsPath(list)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Admins []domain.AdminEntry `json:"admins"`
	}
	if err := c.do(ctx, "admins", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Admins {
		resp.Admins[i].List = list
	}
	return resp.Admins, nil
}

// AddAdmin adds an entry and returns it as stored by the backend.
func (c *Client) AddAdmin(ctx context.Context, list domain.AdminList, entry domain.AdminEntry) (domain.AdminEntry, error) {
	path, err := adminsPath(list)
	if err != nil {
		return domain.AdminEntry{}, err
	}
	var resp struct {
		Admin *domain.AdminEntry `json:"admin"`
	}
	if err := c.do(ctx, "add_admin", http.MethodPost, path, entry, &resp); err != nil {
		return domain.AdminEntry{}, err
	}
	stored := entry
	if resp.Admin != nil {
		stored = *resp.Admin
	}
	stored.List = list
	return stored, nil
}

// RemoveAdmin deletes an entry by id.
func (c *Client) RemoveAdmin(ctx context.Context, list domain.AdminList, id string) error {
	path, err := adminsPath(list)
	if err != nil {
		return err
	}
	return c.do(ctx, "remove_admin", http.MethodDelete, path+"/"+url.PathEscape(id), nil, nil)
}

// UpdateAdmin replaces the per-entity config of an entry.
func (c *Client) UpdateAdmin(ctx context.Context, list domain.AdminList, id string, cfg domain.TokenConfig) error {
	path, err := adminsPath(list)
	if err != nil {
		return err
	}
	body := struct {
		Config domain.TokenConfig `json:"config"`
	}{cfg}
	return c.do(ctx, "update_admin", http.MethodPut, path+"/"+url.PathEscape(id), body, nil)
}

// Communities fetches tracked communities.
func (c *Client) Communities(ctx context.Context) ([]Community, error) {
	var resp struct {
		Communities []Community `json:"communities"`
	}
	if err := c.do(ctx, "communities", http.MethodGet, "/api/communities", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Communities, nil
}

// ClearCommunities drops every tracked community.
func (c *Client) ClearCommunities(ctx context.Context) error {
	return c.do(ctx, "clear_communities", http.MethodDelete, "/api/communities", nil, nil)
}

// Tweets fetches tracked tweets.
func (c *Client) Tweets(ctx context.Context) ([]Tweet, error) {
	var resp struct {
		Tweets []Tweet `json:"tweets"`
	}
	if err := c.do(ctx, "tweets", http.MethodGet, "/api/tweets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tweets, nil
}

// ClearTweets drops every tracked tweet.
func (c *Client) ClearTweets(ctx context.Context) error {
	return c.do(ctx, "clear_tweets", http.MethodDelete, "/api/tweets", nil, nil)
}

// ResolveToken asks the backend for the token's bonding curve and pair.
func (c *Client) ResolveToken(ctx context.Context, tokenAddress string) (Resolution, error) {
	body := struct {
		TokenAddress string `json:"tokenAddress"`
	}{tokenAddress}
	var res Resolution
	if err := c.do(ctx, "resolve_token", http.MethodPost, "/api/token/resolve", body, &res); err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// Sounds lists the uploaded custom sounds.
func (c *Client) Sounds(ctx context.Context) ([]string, error) {
	var resp struct {
		Sounds []string `json:"sounds"`
	}
	if err := c.do(ctx, "sounds", http.MethodGet, "/api/sounds", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sounds, nil
}

// UploadSound stores a custom sound under name. Data is sent base64 encoded.
func (c *Client) UploadSound(ctx context.Context, name string, data []byte) error {
	body := struct {
		Name string `json:"name"`
		Data []byte `json:"data"`
	}{name, data}
	return c.do(ctx, "upload_sound", http.MethodPost, "/api/sounds", body, nil)
}

// DeleteSound removes a custom sound.
func (c *Client) DeleteSound(ctx context.Context, name string) error {
	return c.do(ctx, "delete_sound", http.MethodDelete, "/api/sounds/"+url.PathEscape(name), nil, nil)
}

// StartBot starts the backend detection process.
func (c *Client) StartBot(ctx context.Context) error {
	return c.do(ctx, "bot_start", http.MethodPost, "/api/bot/start", nil, nil)
}

// StopBot stops the backend detection process.
func (c *Client) StopBot(ctx context.Context) error {
	return c.do(ctx, "bot_stop", http.MethodPost, "/api/bot/stop", nil, nil)
}

// Snipe triggers a buy.
func (c *Client) Snipe(ctx context.Context, req SnipeRequest) (SnipeResult, error) {
	var res SnipeResult
	if err := c.do(ctx, "snipe", http.MethodPost, "/api/snipe", req, &res); err != nil {
		return SnipeResult{}, err
	}
	return res, nil
}

// TwitterLogin opens a backend Twitter session.
func (c *Client) TwitterLogin(ctx context.Context, username, password string) error {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}
	return c.do(ctx, "twitter_login", http.MethodPost, "/api/twitter/login", body, nil)
}

// TwitterLogout closes the backend Twitter session.
func (c *Client) TwitterLogout(ctx context.Context) error {
	return c.do(ctx, "twitter_logout", http.MethodPost, "/api/twitter/logout", nil, nil)
}

// TwitterStatus fetches the backend Twitter session state.
func (c *Client) TwitterStatus(ctx context.Context) (TwitterStatus, error) {
	var st TwitterStatus
	if err := c.do(ctx, "twitter_status", http.MethodGet, "/api/twitter/status", nil, &st); err != nil {
		return TwitterStatus{}, err
	}
	return st, nil
}
