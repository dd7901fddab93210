// Package util provides small helpers shared across the CLI: outbound proxy
// wiring and SSH tunnel hints for logging in from headless machines.
package util

import (
	"context"
	"net"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy applies the configured proxy URL to the HTTP client.
// Supported schemes are socks5 (with optional user:pass) and http/https.
// An empty or unparseable proxy URL leaves the client untouched.
func SetProxy(proxyRawURL string, httpClient *http.Client) *http.Client {
	if proxyRawURL == "" {
		return httpClient
	}
	proxyURL, err := url.Parse(proxyRawURL)
	if err != nil {
		log.Warnf("ignoring invalid proxy url: %v", err)
		return httpClient
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "socks5":
		var proxyAuth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			proxyAuth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return httpClient
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	default:
		log.Warnf("unsupported proxy scheme %q, using direct connection", proxyURL.Scheme)
	}

	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}
