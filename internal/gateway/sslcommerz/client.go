package sslcommerz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Freeeeeet/marketplace/internal/gateway"
)

const (
	SandboxBaseURL = "https://sandbox.sslcommerz.com"
	LiveBaseURL    = "https://securepay.sslcommerz.com"

	initPath = "/gwprocess/v4/api.php"
	name     = "sslcommerz"
)

type Config struct {
	StoreID         string
	StorePassword   string
	BaseURL         string
	VerifySignature bool
	Timeout         time.Duration
}

// Client opens hosted payment sessions and parses IPN payloads.
type Client struct {
	storeID         string
	storePassword   string
	baseURL         string
	verifySignature bool
	httpClient      *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		storeID:         cfg.StoreID,
		storePassword:   cfg.StorePassword,
		baseURL:         strings.TrimRight(baseURL, "/"),
		verifySignature: cfg.VerifySignature,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return name
}

type initResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// InitiateSession регистрирует транзакцию в шлюзе и возвращает URL платёжной страницы
func (c *Client) InitiateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	form := url.Values{}
	form.Set("store_id", c.storeID)
	form.Set("store_passwd", c.storePassword)
	form.Set("total_amount", FormatAmount(req.Amount))
	form.Set("currency", req.Currency)
	form.Set("tran_id", req.TransactionID)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("ipn_url", req.NotificationURL)
	form.Set("cus_name", req.Customer.Name)
	form.Set("cus_email", req.Customer.Email)
	form.Set("cus_phone", req.Customer.Phone)
	form.Set("cus_add1", req.Customer.Address)
	form.Set("cus_city", req.Customer.City)
	form.Set("cus_country", req.Customer.Country)
	form.Set("shipping_method", "NO")
	form.Set("product_name", req.ProductName)
	form.Set("product_category", req.ProductCategory)
	form.Set("product_profile", "non-physical-goods")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+initPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build init request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send init request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read init response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("init request failed with status %d", res.StatusCode)
	}

	var out initResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode init response: %w", err)
	}

	if !strings.EqualFold(out.Status, "SUCCESS") {
		return nil, fmt.Errorf("%w: %s", gateway.ErrRejected, out.FailedReason)
	}
	if out.GatewayPageURL == "" {
		return nil, fmt.Errorf("%w: empty gateway page url", gateway.ErrRejected)
	}

	return &gateway.Session{
		RedirectURL: out.GatewayPageURL,
		SessionKey:  out.SessionKey,
	}, nil
}

// FormatAmount renders minor units as the decimal string the gateway expects.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
