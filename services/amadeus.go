package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"flightfinder/config"
)

// ─── Provider Types ───────────────────────────────────────────────────────────

// FlightOffersResponse is the provider's flight-offers payload, kept as-is.
type FlightOffersResponse struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Data         []FlightOffer `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
	} `json:"dictionaries"`
}

type FlightOffer struct {
	ID                     string      `json:"id"`
	Price                  OfferPrice  `json:"price"`
	Itineraries            []Itinerary `json:"itineraries"`
	ValidatingAirlineCodes []string    `json:"validatingAirlineCodes"`
}

type OfferPrice struct {
	Total      string `json:"total"`
	GrandTotal string `json:"grandTotal"`
	Currency   string `json:"currency"`
}

type Itinerary struct {
	Duration string    `json:"duration"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Departure   SegmentEndpoint `json:"departure"`
	Arrival     SegmentEndpoint `json:"arrival"`
	CarrierCode string          `json:"carrierCode"`
	Number      string          `json:"number"`
}

type SegmentEndpoint struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at"`
}

// ─── Amadeus Client ───────────────────────────────────────────────────────────

// ProviderObserver receives the outcome and latency of every provider call.
type ProviderObserver interface {
	ObserveProvider(result string, d time.Duration)
}

type AmadeusClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	timeout      time.Duration
	adults       int
	maxResults   int
	currency     string

	// The token is the only state shared between requests; it stands in for
	// what a provider SDK keeps internally.
	accessToken string
	tokenExpiry time.Time
	mu          sync.Mutex

	httpClient *http.Client
	observer   ProviderObserver
}

type Option func(*AmadeusClient)

// WithBaseURL points the client at another host, e.g. a local fake.
func WithBaseURL(u string) Option {
	return func(c *AmadeusClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *AmadeusClient) { c.httpClient = hc }
}

func WithObserver(o ProviderObserver) Option {
	return func(c *AmadeusClient) { c.observer = o }
}

func NewAmadeusClient(cfg config.AmadeusConfig, opts ...Option) *AmadeusClient {
	c := &AmadeusClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		baseURL:      cfg.BaseURL(),
		timeout:      cfg.Timeout,
		adults:       cfg.Adults,
		maxResults:   cfg.MaxResults,
		currency:     cfg.Currency,
		// Deadlines come from the per-call context.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warm fetches a token up front so that credential problems show up in the
// startup log instead of on the first search.
func (c *AmadeusClient) Warm(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.getToken(ctx)
	return err
}

// ─── OAuth2 Token ─────────────────────────────────────────────────────────────

func (c *AmadeusClient) refreshToken(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/security/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return &GatewayError{Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		// A rejected client_credentials grant is a credential problem whatever the status.
		if kind == KindValidation {
			kind = KindAuth
		}
		return &GatewayError{
			Kind:           kind,
			ProviderStatus: resp.StatusCode,
			Detail:         providerDetail(body),
			Err:            fmt.Errorf("token request rejected"),
		}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return &GatewayError{Kind: KindUnknown, ProviderStatus: resp.StatusCode, Err: fmt.Errorf("failed to parse token response: %w", err)}
	}

	c.mu.Lock()
	c.accessToken = result.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn-30) * time.Second)
	c.mu.Unlock()

	return nil
}

func (c *AmadeusClient) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	expired := time.Now().After(c.tokenExpiry)
	token := c.accessToken
	c.mu.Unlock()

	if expired || token == "" {
		if err := c.refreshToken(ctx); err != nil {
			return "", err
		}
		c.mu.Lock()
		token = c.accessToken
		c.mu.Unlock()
	}
	return token, nil
}

func (c *AmadeusClient) dropToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func (c *AmadeusClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Kind: KindUnknown, Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.amadeus+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := classifyStatus(resp.StatusCode)
		if kind == KindAuth {
			// Force a fresh token on the next call; this one is not retried.
			c.dropToken()
		}
		return nil, &GatewayError{
			Kind:           kind,
			ProviderStatus: resp.StatusCode,
			Detail:         providerDetail(respBody),
			Err:            fmt.Errorf("%s %s rejected", method, strings.SplitN(path, "?", 2)[0]),
		}
	}
	return respBody, nil
}

// ─── Flight Search ────────────────────────────────────────────────────────────

// SearchFlights makes exactly one flight-offers call. Multiple codes on either
// side are sent comma-joined so the provider searches across all of them.
// Every failure is a *GatewayError.
func (c *AmadeusClient) SearchFlights(ctx context.Context, origins, destinations []string, departureDate string) (*FlightOffersResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("originLocationCode", strings.Join(origins, ","))
	q.Set("destinationLocationCode", strings.Join(destinations, ","))
	q.Set("departureDate", departureDate)
	q.Set("adults", strconv.Itoa(c.adults))
	q.Set("max", strconv.Itoa(c.maxResults))
	q.Set("currencyCode", c.currency)

	start := time.Now()
	body, err := c.doRequest(ctx, http.MethodGet, "/v2/shopping/flight-offers?"+q.Encode(), nil)
	if err != nil {
		gwErr := AsGatewayError(err)
		c.observe(gwErr.Kind.String(), time.Since(start))
		return nil, gwErr
	}

	var resp FlightOffersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.observe(KindUnknown.String(), time.Since(start))
		return nil, &GatewayError{Kind: KindUnknown, ProviderStatus: http.StatusOK, Err: fmt.Errorf("failed to parse flight offers: %w", err)}
	}
	if resp.Data == nil {
		resp.Data = []FlightOffer{}
	}

	c.observe("ok", time.Since(start))
	log.Printf("✅ Amadeus: %d raw offers for %s -> %s on %s",
		len(resp.Data), q.Get("originLocationCode"), q.Get("destinationLocationCode"), departureDate)
	return &resp, nil
}

func (c *AmadeusClient) observe(result string, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveProvider(result, d)
	}
}

// providerDetail keeps the provider's "errors" array when there is one,
// otherwise the whole body.
func providerDetail(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if !json.Valid(trimmed) {
		return string(trimmed)
	}

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Errors) > 0 {
		return envelope.Errors
	}
	return json.RawMessage(trimmed)
}
