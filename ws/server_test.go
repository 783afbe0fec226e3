package ws

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteAddr(t *testing.T) {
	r := &http.Request{RemoteAddr: "192.0.2.7:51234", Header: http.Header{}}
	assert.Equal(t, "192.0.2.7", remoteAddr(r, false))

	// forwarding headers are only trusted behind a reverse proxy
	r.Header.Set("X-Forwarded-For", "10.1.1.1, 192.0.2.99")
	assert.Equal(t, "192.0.2.7", remoteAddr(r, false))

	// the last entry is the address the proxy itself observed
	assert.Equal(t, "192.0.2.99", remoteAddr(r, true))

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "192.0.2.7", remoteAddr(r, true))

	r.RemoteAddr = "not-a-hostport"
	assert.Equal(t, "not-a-hostport", remoteAddr(r, true))
}
