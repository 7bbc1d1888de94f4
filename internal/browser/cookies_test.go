package browser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieExport = `[
  {
    "name": "li_at",
    "value": "AQEDAR...",
    "domain": ".www.linkedin.com",
    "path": "/",
    "expirationDate": 1784167800.5,
    "httpOnly": true,
    "secure": true,
    "session": false,
    "sameSite": "no_restriction"
  },
  {
    "name": "JSESSIONID",
    "value": "ajax:123",
    "domain": ".www.linkedin.com",
    "path": "/",
    "session": true,
    "sameSite": "lax"
  },
  {
    "name": "",
    "value": "orphaned",
    "domain": ".www.linkedin.com"
  }
]`

func writeCookieFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadCookieFile(t *testing.T) {
	path := writeCookieFile(t, cookieExport)

	cookies, err := loadCookieFile(path)
	require.NoError(t, err)
	require.Len(t, cookies, 3)
	assert.Equal(t, "li_at", cookies[0].Name)
	assert.True(t, cookies[0].HTTPOnly)
	assert.True(t, cookies[1].Session)
}

func TestLoadCookieFileMissing(t *testing.T) {
	_, err := loadCookieFile("/nonexistent/cookies.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/cookies.json")
}

func TestLoadCookieFileMalformed(t *testing.T) {
	path := writeCookieFile(t, `{"not": "an array"}`)
	_, err := loadCookieFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing cookie file")
}

func TestCookieParams(t *testing.T) {
	path := writeCookieFile(t, cookieExport)
	cookies, err := loadCookieFile(path)
	require.NoError(t, err)

	params := cookieParams(cookies)
	require.Len(t, params, 2, "nameless cookie must be dropped")

	liAt := params[0]
	assert.Equal(t, "li_at", liAt.Name)
	assert.Equal(t, ".www.linkedin.com", liAt.Domain)
	assert.True(t, liAt.HTTPOnly)
	assert.True(t, liAt.Secure)
	assert.Equal(t, network.CookieSameSiteNone, liAt.SameSite)
	require.NotNil(t, liAt.Expires)
	assert.Equal(t, int64(1784167800), time.Time(*liAt.Expires).Unix())

	jsession := params[1]
	assert.Nil(t, jsession.Expires, "session cookies carry no expiry")
	assert.Equal(t, network.CookieSameSiteLax, jsession.SameSite)
}

func TestCheckCookieFile(t *testing.T) {
	t.Run("should count usable cookies", func(t *testing.T) {
		path := writeCookieFile(t, cookieExport)
		count, err := CheckCookieFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("should reject an export with no usable cookies", func(t *testing.T) {
		path := writeCookieFile(t, `[{"name": "", "value": "orphaned"}]`)
		_, err := CheckCookieFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable cookies")
	})

	t.Run("should surface a missing file", func(t *testing.T) {
		_, err := CheckCookieFile("/nonexistent/cookies.json")
		require.Error(t, err)
	})
}

func TestMapSameSite(t *testing.T) {
	assert.Equal(t, network.CookieSameSiteStrict, mapSameSite("strict"))
	assert.Equal(t, network.CookieSameSiteLax, mapSameSite("lax"))
	assert.Equal(t, network.CookieSameSiteNone, mapSameSite("none"))
	assert.Equal(t, network.CookieSameSiteNone, mapSameSite("no_restriction"))
	assert.Equal(t, network.CookieSameSite(""), mapSameSite("unspecified"))
}
