package fetch

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// browserCookie matches the JSON emitted by browser automation tools when
// exporting cookies (one object per cookie).
type browserCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expiry   float64 `json:"expiry"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
}

// loadCookieJar reads an exported cookie file and returns a jar scoped to
// siteURL, plus the CSRF token derived from the JSESSIONID cookie. The
// portal requires the csrf-token header to equal the ajax: session value
// on fragment requests.
func loadCookieJar(path string, siteURL string) (http.CookieJar, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetch: read cookies %s", path)
	}

	var cookies []browserCookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, "", eris.Wrapf(err, "fetch: parse cookies %s", path)
	}

	u, err := url.Parse(siteURL)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetch: parse site url %s", siteURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "fetch: new cookie jar")
	}

	var csrf string
	hc := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		value := strings.Trim(c.Value, `"`)
		// Domain is dropped on purpose: the jar scopes everything to
		// siteURL, and host-only cookies survive IP-address test servers.
		hc = append(hc, &http.Cookie{
			Name:     c.Name,
			Value:    value,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
		if c.Name == "JSESSIONID" && strings.HasPrefix(value, "ajax:") {
			csrf = value
		}
	}
	jar.SetCookies(u, hc)

	return jar, csrf, nil
}
