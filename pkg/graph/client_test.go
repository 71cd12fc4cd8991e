package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithHTTP(srv.URL, srv.Client())
}

func TestManagerNotFoundMeansNone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/manager", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"Request_ResourceNotFound","message":"no manager"}}`))
	})

	mgr, err := c.Manager(context.Background())
	require.NoError(t, err)
	assert.Nil(t, mgr)
}

func TestListFollowsNextLink(t *testing.T) {
	var srvURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"value":[{"id":"u3"}]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"value":           []map[string]string{{"id": "u1"}, {"id": "u2"}},
			"@odata.nextLink": srvURL + "/me/directReports?page=2",
		})
	})
	srvURL = c.baseURL

	users, err := c.DirectReports(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "u3", users[2].ID)
}

func TestAPIErrorDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"Forbidden","message":"nope"}}`))
	})

	_, err := c.Me(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Forbidden", apiErr.Code)
	assert.False(t, IsNotFound(err))
}

func TestBatchRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/$batch", r.URL.Path)
		var in struct {
			Requests []BatchRequest `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Len(t, in.Requests, 2)
		_, _ = w.Write([]byte(`{"responses":[
			{"id":"1","status":200,"headers":{"Content-Type":"image/png"},"body":"aGVsbG8="},
			{"id":"2","status":404,"body":{"error":{"code":"ImageNotFound"}}}
		]}`))
	})

	out, err := c.Batch(context.Background(), []BatchRequest{
		{ID: "1", Method: http.MethodGet, URL: PhotoPath("a")},
		{ID: "2", Method: http.MethodGet, URL: PhotoPath("b")},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	url, ok := DataURL(out[0])
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", url)

	_, ok = DataURL(out[1])
	assert.False(t, ok)
}

func TestBatchRejectsOversizedRequests(t *testing.T) {
	c := NewClientWithHTTP("http://unused", nil)
	reqs := make([]BatchRequest, MaxBatchSize+1)
	_, err := c.Batch(context.Background(), reqs)
	assert.Error(t, err)
}

func TestPhotoDownloadsBytesAndTreats404AsNone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/ghost/photos/48x48/$value" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"ImageNotFound","message":"none"}}`))
			return
		}
		assert.Equal(t, "/users/u1/photos/48x48/$value", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	})

	data, contentType, err := c.Photo(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5n", EncodeDataURL(data, contentType))

	data, _, err = c.Photo(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, "data:image/jpeg;base64,", EncodeDataURL(nil, ""))
}
