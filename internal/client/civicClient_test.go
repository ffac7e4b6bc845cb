package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verbapost/internal/config"
	"verbapost/internal/model"
)

func civicTestAddress() model.Address {
	return model.Address{
		Name:   "Tarak Robbana",
		Street: "1008 Brandon Court",
		City:   "Mt Juliet",
		State:  "TN",
		Zip:    "37122",
	}
}

const civicPayload = `{
  "results": [{
    "fields": {
      "congressional_districts": [
        {
          "current_legislators": [
            {"type": "representative", "first_name": "Mark", "last_name": "Green",
             "contact": {"address": "2446 Rayburn House Office Building"}},
            {"type": "senator", "first_name": "Marsha", "last_name": "Blackburn",
             "contact": {"address": "357 Dirksen Senate Office Building"}},
            {"type": "senator", "first_name": "Bill", "last_name": "Hagerty",
             "contact": {"address": ""}}
          ]
        },
        {
          "current_legislators": [
            {"type": "senator", "first_name": "Marsha", "last_name": "Blackburn",
             "contact": {"address": "357 Dirksen Senate Office Building"}}
          ]
        }
      ]
    }
  }]
}`

func TestCivicLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1.7/geocode", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1008 Brandon Court, Mt Juliet, TN 37122", q.Get("q"))
		assert.Equal(t, "cd", q.Get("fields"))
		assert.Equal(t, "geo_test_key", q.Get("api_key"))

		w.Write([]byte(civicPayload))
	}))
	defer srv.Close()

	c := NewCivicClient(&config.Civic{BaseApiURL: srv.URL, APIKey: "geo_test_key"})
	targets, err := c.Lookup(context.Background(), civicTestAddress())
	require.NoError(t, err)

	// Blackburn appears in both districts but is returned once
	require.Len(t, targets, 3)

	assert.Equal(t, "Mark Green", targets[0].Name)
	assert.Equal(t, "U.S. Representative", targets[0].Title)
	assert.Equal(t, "2446 Rayburn House Office Building", targets[0].Address.Street)

	assert.Equal(t, "Marsha Blackburn", targets[1].Name)
	assert.Equal(t, "U.S. Senator", targets[1].Title)

	// missing office address falls back to the Capitol
	assert.Equal(t, "Bill Hagerty", targets[2].Name)
	assert.Equal(t, "United States Capitol, Washington DC 20510", targets[2].Address.Street)

	for _, target := range targets {
		assert.Equal(t, "Washington", target.Address.City)
		assert.Equal(t, "DC", target.Address.State)
		assert.Equal(t, "20510", target.Address.Zip)
	}
}

func TestCivicLookupNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewCivicClient(&config.Civic{BaseApiURL: srv.URL, APIKey: "geo"})
	targets, err := c.Lookup(context.Background(), civicTestAddress())

	require.NoError(t, err)
	assert.Nil(t, targets)
}

func TestCivicLookupAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Could not geocode address.","results":[]}`))
	}))
	defer srv.Close()

	c := NewCivicClient(&config.Civic{BaseApiURL: srv.URL, APIKey: "geo"})
	_, err := c.Lookup(context.Background(), civicTestAddress())

	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestCivicLookupServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCivicClient(&config.Civic{BaseApiURL: srv.URL, APIKey: "geo"})
	_, err := c.Lookup(context.Background(), civicTestAddress())

	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}
