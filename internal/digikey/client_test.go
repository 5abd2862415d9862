package digikey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, tokenCalls, productCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "id123", r.Form.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":600}`, tokenCalls.Load())
	})
	mux.HandleFunc("GET /products/v4/search/{pn}/productdetails", func(w http.ResponseWriter, r *http.Request) {
		productCalls.Add(1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "id123", r.Header.Get("X-DIGIKEY-Client-Id"))
		assert.Equal(t, "US", r.Header.Get("X-DIGIKEY-Locale-Site"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"Product":{"ManufacturerProductNumber":%q}}`, r.PathValue("pn"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProductDetails(t *testing.T) {
	var tokenCalls, productCalls atomic.Int32
	srv := newTestServer(t, &tokenCalls, &productCalls)

	c := NewClient("id123", "secret", WithBaseURL(srv.URL))
	raw, err := c.ProductDetails(context.Background(), "296-1234-ND")
	require.NoError(t, err)

	var body struct {
		Product struct {
			ManufacturerProductNumber string
		}
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "296-1234-ND", body.Product.ManufacturerProductNumber)
}

func TestTokenIsCachedUntilNearExpiry(t *testing.T) {
	var tokenCalls, productCalls atomic.Int32
	srv := newTestServer(t, &tokenCalls, &productCalls)

	now := time.Now()
	c := NewClient("id123", "secret", WithBaseURL(srv.URL))
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := c.ProductDetails(context.Background(), "296-1234-ND")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), tokenCalls.Load(), "token fetched once")
	assert.Equal(t, int32(3), productCalls.Load())

	// Within the safety margin of expiry the token is refreshed.
	now = now.Add(600*time.Second - 10*time.Second)
	_, err := c.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), tokenCalls.Load())
}

func TestProductDetailsEscapesPartNumber(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok","expires_in":600}`)
			return
		}
		gotPath = r.URL.EscapedPath()
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient("id", "secret", WithBaseURL(srv.URL))
	_, err := c.ProductDetails(context.Background(), "BC846B/SOT23")
	require.NoError(t, err)
	assert.Contains(t, gotPath, "BC846B%2FSOT23")
}

func TestLookupPartNumberPreference(t *testing.T) {
	assert.Equal(t, "296-1234-ND", LookupPartNumber(map[string]any{
		"digikey_part_number": "296-1234-ND",
		"mfr_part_number":     "NE555P",
	}))
	assert.Equal(t, "NE555P", LookupPartNumber(map[string]any{"mfr_part_number": "NE555P"}))
	assert.Equal(t, "", LookupPartNumber(map[string]any{"quantity": 5}))
}

func TestErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok","expires_in":600}`)
			return
		}
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("id", "secret", WithBaseURL(srv.URL))
	_, err := c.ProductDetails(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product lookup failed")
}

func TestUnconfiguredClient(t *testing.T) {
	assert.False(t, NewClient("", "").Configured())
	assert.True(t, NewClient("a", "b").Configured())
}
