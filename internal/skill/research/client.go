// ABOUTME: Constructs the production SSRF-safe HTTP client for vendor research.
// ABOUTME: Uses doyensec/safeurl with redirect following disabled.
package research

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// BuildSafeClient returns an SSRF-safe *http.Client for outbound research
// calls. Redirect following is disabled. A non-positive timeout falls back
// to 10 seconds.
func BuildSafeClient(timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetCheckRedirect(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}).
		Build()
	return safeurl.Client(cfg).Client, nil
}
