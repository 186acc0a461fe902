package client

import (
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

// newHTTP3Transport builds the QUIC round tripper used when Config.UseHTTP3
// is set. Domains advertising HTTP/3 skip TCP+TLS handshakes on reconnect,
// which matters for mobile clients hopping networks.
func newHTTP3Transport() http.RoundTripper {
	return &http3.Transport{}
}
