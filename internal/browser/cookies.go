package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// exportedCookie mirrors the Cookie-Editor browser extension's export format,
// which is how operators hand their authenticated session to the engine.
type exportedCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	ExpirationDate float64 `json:"expirationDate"`
	HTTPOnly       bool    `json:"httpOnly"`
	Secure         bool    `json:"secure"`
	Session        bool    `json:"session"`
	SameSite       string  `json:"sameSite"`
}

// loadCookieFile parses a Cookie-Editor JSON export.
func loadCookieFile(path string) ([]exportedCookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cookie file %q: %w", path, err)
	}
	var cookies []exportedCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parsing cookie file %q: %w", path, err)
	}
	return cookies, nil
}

// cookieParams converts exported cookies into CDP set-cookie parameters.
// Session cookies carry no expiry; everything else keeps its original one.
func cookieParams(cookies []exportedCookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: mapSameSite(c.SameSite),
		}
		if !c.Session && c.ExpirationDate > 0 {
			expires := cdp.TimeSinceEpoch(timeFromUnixFloat(c.ExpirationDate))
			p.Expires = &expires
		}
		params = append(params, p)
	}
	return params
}

func mapSameSite(v string) network.CookieSameSite {
	switch v {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "no_restriction", "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}

// CheckCookieFile parses an export without launching a browser and reports
// how many usable cookies it holds. Preflight validation uses this to catch
// a bad path or a stale, empty export before any session starts.
func CheckCookieFile(path string) (int, error) {
	cookies, err := loadCookieFile(path)
	if err != nil {
		return 0, err
	}
	params := cookieParams(cookies)
	if len(params) == 0 {
		return 0, fmt.Errorf("cookie file %q contains no usable cookies", path)
	}
	return len(params), nil
}

// importCookies injects the exported session cookies into the browser. It
// must run before the first navigation so the site sees a logged-in user
// immediately.
func importCookies(ctx context.Context, path string, logger *zap.Logger) error {
	cookies, err := loadCookieFile(path)
	if err != nil {
		return err
	}
	params := cookieParams(cookies)
	if len(params) == 0 {
		return fmt.Errorf("cookie file %q contains no usable cookies", path)
	}

	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("importing %d cookies: %w", len(params), err)
	}
	logger.Info("Session cookies imported.", zap.Int("count", len(params)))
	return nil
}

func timeFromUnixFloat(sec float64) time.Time {
	whole := int64(sec)
	frac := int64((sec - float64(whole)) * 1e9)
	return time.Unix(whole, frac)
}
