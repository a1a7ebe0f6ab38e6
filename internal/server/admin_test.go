package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminEndpoints(t *testing.T) {
	var aggCalls, mineCalls int
	aggregate := func(ctx context.Context) bool {
		aggCalls++
		return aggCalls == 1
	}
	mine := func(ctx context.Context) bool {
		mineCalls++
		return true
	}

	admin := NewAdmin(":0", context.Background(), aggregate, mine)
	srv := httptest.NewServer(admin.srv.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/aggregations/run", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// A second trigger while the first run holds the lock conflicts
	resp, err = http.Post(srv.URL+"/api/v1/aggregations/run", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/mining/run", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, mineCalls)
}
