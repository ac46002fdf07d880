// Package cloudinary uploads spoilage evidence images through the Cloudinary REST API.
package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/fruitstock/internal/config"
)

// Client performs signed image uploads.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	apiSecret  string
	folder     string
	now        func() time.Time
}

// NewClient builds a Cloudinary client using the provided configuration values.
func NewClient(cfg config.CloudinaryConfig) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.CloudName)).
		SetTimeout(30 * time.Second)

	return &Client{
		httpClient: restyClient,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		folder:     cfg.Folder,
		now:        time.Now,
	}
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends one image and returns its HTTPS delivery URL.
func (c *Client) Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.folder != "" {
		params["folder"] = c.folder
	}

	form := make(map[string]string, len(params)+2)
	for k, v := range params {
		form[k] = v
	}
	form["api_key"] = c.apiKey
	form["signature"] = Sign(params, c.apiSecret)

	result := new(uploadResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetMultipartField("file", name, contentType, body).
		SetResult(result).
		SetError(apiErr).
		Post("image/upload")
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return "", fmt.Errorf("cloudinary api error: status=%d, message=%s", resp.StatusCode(), apiErr.Error.Message)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload: response without secure_url")
	}

	return result.SecureURL, nil
}

// Sign computes the request signature: the parameters sorted by key, joined
// as k=v pairs with '&', followed by the API secret, hashed with SHA-1.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
