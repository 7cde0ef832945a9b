package fetch

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// proxyRotator hands out proxies round-robin across requests so a single
// egress address does not absorb the whole crawl.
type proxyRotator struct {
	mu      sync.Mutex
	proxies []*url.URL
	next    int
}

// newProxyRotator parses proxy addresses. Bare host:port entries are
// treated as HTTP proxies.
func newProxyRotator(addrs []string) (*proxyRotator, error) {
	r := &proxyRotator{}
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if !strings.Contains(addr, "://") {
			addr = "http://" + addr
		}
		u, err := url.Parse(addr)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: parse proxy %s", addr)
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

// proxyFunc is plugged into http.Transport.Proxy. With no proxies
// configured it falls through to the environment settings.
func (r *proxyRotator) proxyFunc(req *http.Request) (*url.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return http.ProxyFromEnvironment(req)
	}
	u := r.proxies[r.next%len(r.proxies)]
	r.next++
	return u, nil
}
