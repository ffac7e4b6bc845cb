package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"verbapost/internal/config"
	"verbapost/internal/model"
)

type Representative struct {
	Name    string
	Title   string
	Address model.Address
}

// CivicClient resolves a postal address to its federal legislators. An empty
// slice is a valid "no targets found" response, not an error.
type CivicClient interface {
	Lookup(ctx context.Context, addr model.Address) ([]Representative, error)
}

type civicClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
}

func NewCivicClient(cfg *config.Civic) CivicClient {
	return &civicClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		apiKey:     cfg.APIKey,
	}
}

// capitolStreet is the fallback when the directory has no office address.
const capitolStreet = "United States Capitol, Washington DC 20510"

type civicLegislator struct {
	Type      string `json:"type"` // senator | representative
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Contact   struct {
		Address string `json:"address"`
	} `json:"contact"`
}

type civicDistrict struct {
	CurrentLegislators []civicLegislator `json:"current_legislators"`
}

type civicLookupResult struct {
	Fields struct {
		CongressionalDistricts []civicDistrict `json:"congressional_districts"`
	} `json:"fields"`
}

type civicLookupResponse struct {
	Error   string              `json:"error"`
	Results []civicLookupResult `json:"results"`
}

func (c *civicClientImpl) Lookup(ctx context.Context, addr model.Address) ([]Representative, error) {
	q := url.Values{}
	q.Set("q", addr.SingleLine())
	q.Set("fields", "cd")
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseApiURL+"/v1.7/geocode?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("civic lookup: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("civic lookup: %w: status=%d body=%s", model.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result civicLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode civic response: %w", err)
	}

	if result.Error != "" {
		return nil, fmt.Errorf("civic lookup: %w: %s", model.ErrProviderUnavailable, result.Error)
	}
	if len(result.Results) == 0 {
		return nil, nil
	}

	// Best match only. Senators appear once per district in the payload, so
	// dedupe by name.
	var targets []Representative
	seen := make(map[string]bool)

	for _, district := range result.Results[0].Fields.CongressionalDistricts {
		for _, leg := range district.CurrentLegislators {
			name := leg.FirstName + " " + leg.LastName
			if seen[name] {
				continue
			}
			seen[name] = true

			title := "U.S. Representative"
			if leg.Type == "senator" {
				title = "U.S. Senator"
			}

			street := leg.Contact.Address
			if street == "" {
				street = capitolStreet
			}

			targets = append(targets, Representative{
				Name:  name,
				Title: title,
				Address: model.Address{
					Name:   name,
					Street: street,
					City:   "Washington",
					State:  "DC",
					Zip:    "20510",
				},
			})
		}
	}

	return targets, nil
}
