package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cis-timetable/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// newRequest builds a request with the headers of a regular browser; the
// portal rejects bare clients. Credentials are only attached for the
// portal's own hosts, never for links pointing elsewhere.
func (s *Scraper) newRequest(ctx context.Context, method, target, referer string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	if s.portalHost(req.URL) {
		req.SetBasicAuth(s.opts.Username, s.opts.Password)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-AT,de;q=0.9,en;q=0.5")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	return req, nil
}

// portalHost reports whether u is served by the login or list page host.
func (s *Scraper) portalHost(u *url.URL) bool {
	for _, raw := range []string{s.opts.LoginURL, s.opts.ListURL} {
		p, err := url.Parse(raw)
		if err == nil && p.Host != "" && strings.EqualFold(p.Host, u.Host) {
			return true
		}
	}
	return false
}

// Login opens the portal's login page with HTTP Basic credentials. It
// fails with ErrAuthFailed when the portal refuses them.
func (s *Scraper) Login(ctx context.Context) error {
	log := logger.Log.WithField("url", s.opts.LoginURL)

	req, err := s.newRequest(ctx, http.MethodGet, s.opts.LoginURL, "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	resp, err := s.session.Do(req)
	if err != nil {
		return fmt.Errorf("%w: requesting login page: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	log.WithField("status", resp.Status).Debug("Login page answered")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: portal answered %s, check CIS_USER and CIS_PASS", ErrAuthFailed, resp.Status)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: login page returned %s", ErrAuthFailed, resp.Status)
	}

	if s.opts.FailureMarker != "" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: reading login page: %v", ErrAuthFailed, err)
		}
		if strings.Contains(string(body), s.opts.FailureMarker) {
			return fmt.Errorf("%w: login page still asks for credentials", ErrAuthFailed)
		}
	}

	log.Info("Login successful")
	return nil
}
