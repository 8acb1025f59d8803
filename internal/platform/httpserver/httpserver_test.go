package httpserver_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/platform/httpserver"
)

func TestNewAppliesTimeouts(t *testing.T) {
	srv := httpserver.New(":8080", http.NotFoundHandler())

	require.Equal(t, ":8080", srv.Addr)
	require.NotNil(t, srv.Handler)
	assert.NotZero(t, srv.ReadHeaderTimeout)
	assert.NotZero(t, srv.IdleTimeout)
	// Slow settlement responses must outlive the read side.
	assert.Greater(t, srv.WriteTimeout, srv.ReadTimeout)
}
