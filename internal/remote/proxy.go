package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

var (
	ErrUnsupportedProxyScheme = errors.New("remote: unsupported proxy scheme")
	ErrInvalidProxyURL        = errors.New("remote: invalid proxy URL")
)

var supportedProxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

func parseProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !supportedProxySchemes[u.Scheme] {
		return nil, ErrUnsupportedProxyScheme
	}
	return u, nil
}

// applyProxy routes tr through raw. HTTP proxies use CONNECT; socks5 proxies
// replace the dialer.
func applyProxy(tr *http.Transport, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := parseProxyURL(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "socks5" {
		tr.Proxy = http.ProxyURL(u)
		return nil
	}
	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pass}
	}
	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return err
	}
	tr.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		tr.DialContext = cd.DialContext
	} else {
		tr.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return nil
}
