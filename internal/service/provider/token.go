package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"PayPull/internal/domain/models"
	"PayPull/internal/domain/repository"
	"PayPull/pkg/cache"
	phttp "PayPull/pkg/http"
	"PayPull/pkg/logger"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type tokenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// TokenClient exchanges account credentials for bearer tokens via the
// client-credentials grant, caching tokens per account until shortly
// before expiry.
type TokenClient struct {
	http  *phttp.Client
	cache cache.Service
	log   *logger.Logger

	tokenURL  string
	ttlMargin time.Duration
}

// NewTokenClient creates a TokenSource for the provider token endpoint.
func NewTokenClient(httpClient *phttp.Client, c cache.Service, log *logger.Logger, tokenURL string, ttlMargin time.Duration) repository.TokenSource {
	return &TokenClient{
		http:      httpClient,
		cache:     c,
		log:       log,
		tokenURL:  tokenURL,
		ttlMargin: ttlMargin,
	}
}

// Token returns a bearer token for the account, from cache when one is
// still fresh. Failures surface as AuthError.
func (t *TokenClient) Token(ctx context.Context, account models.Account) (string, error) {
	key := cache.GenerateKey("token", account.ID)
	var cached string
	if err := t.cache.Get(ctx, key, &cached); err == nil && cached != "" {
		return cached, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(account.ClientID + ":" + account.ClientSecret))
	resp, err := t.http.SendRequest(ctx, &phttp.RequestOptions{
		Method: phttp.MethodPost,
		URL:    t.tokenURL,
		Headers: map[string]string{
			"Authorization": "Basic " + basic,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: map[string]string{"grant_type": "client_credentials"},
	})
	if err != nil {
		return "", &models.AuthError{Reason: models.AuthReasonOther, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &models.AuthError{Reason: models.AuthReasonOther, Status: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var te tokenErrorResponse
		_ = json.Unmarshal(body, &te)
		reason := models.AuthReasonOther
		if te.Error == "invalid_client" {
			reason = models.AuthReasonInvalidClient
		}
		return "", &models.AuthError{Reason: reason, Status: resp.StatusCode, Detail: te.Description}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &models.AuthError{Reason: models.AuthReasonOther, Status: resp.StatusCode, Detail: fmt.Sprintf("decode token: %v", err)}
	}
	if tr.AccessToken == "" {
		return "", &models.AuthError{Reason: models.AuthReasonOther, Status: resp.StatusCode, Detail: "empty access_token"}
	}

	if ttl := time.Duration(tr.ExpiresIn)*time.Second - t.ttlMargin; ttl > 0 {
		if err := t.cache.Set(ctx, key, tr.AccessToken, ttl); err != nil {
			t.log.Warn("token cache set failed", logger.String("account", account.ID), logger.Error(err))
		}
	}
	return tr.AccessToken, nil
}
