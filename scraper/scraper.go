package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cis-timetable/logger"
)

// maxScannedAnchors bounds the fallback scan over all anchors of the page.
const maxScannedAnchors = 500

// zipMagic starts every XLSX file.
var zipMagic = []byte("PK\x03\x04")

// Options configures a portal session.
type Options struct {
	LoginURL    string
	ListURL     string
	FallbackURL string
	Username    string
	Password    string

	Rule          LinkRule
	FailureMarker string

	MaxDownloadBytes int64
	// HTTPClient is used as the transport template; a cookie jar is always
	// attached. Nil means a client with a 60 second timeout.
	HTTPClient *http.Client
}

// Scraper is one authenticated session against the portal.
type Scraper struct {
	opts    Options
	session *http.Client
}

// New prepares a session. No request is made until Login.
func New(opts Options) (*Scraper, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	session := &http.Client{Timeout: 60 * time.Second}
	if opts.HTTPClient != nil {
		clone := *opts.HTTPClient
		session = &clone
	}
	session.Jar = jar
	session.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		req.Header.Set("User-Agent", userAgent)
		return nil
	}

	if opts.MaxDownloadBytes <= 0 {
		opts.MaxDownloadBytes = 20 << 20
	}
	return &Scraper{opts: opts, session: session}, nil
}

// Fetch runs the whole acquisition: login, index page, link lookup and
// download. Credentials are verified before anything else is requested.
func (s *Scraper) Fetch(ctx context.Context) (*Workbook, error) {
	if err := s.Login(ctx); err != nil {
		return nil, err
	}
	doc, base, err := s.FetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	link, err := s.LocateLink(doc, base)
	if err != nil {
		return nil, err
	}
	return s.Download(ctx, link)
}

// FetchIndex loads the list page. The returned URL is the final one after
// redirects and is the base for relative links.
func (s *Scraper) FetchIndex(ctx context.Context) (*goquery.Document, *url.URL, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.opts.ListURL, s.opts.LoginURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIndexFetch, err)
	}

	resp, err := s.session.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIndexFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil, fmt.Errorf("%w: list page returned %s", ErrAuthFailed, resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: list page returned %s", ErrIndexFetch, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parsing list page: %v", ErrIndexFetch, err)
	}
	return doc, resp.Request.URL, nil
}

// LocateLink applies the link rule to the list page. It tries, in order,
// a candidate anchor whose own text matches, a candidate anchor next to a
// matching text (icon links), and the configured fallback URL.
func (s *Scraper) LocateLink(doc *goquery.Document, base *url.URL) (Link, error) {
	rule := s.opts.Rule
	log := logger.Log.WithField("selector", rule.Selector)

	candidates := doc.Find(rule.Selector)
	log.Debugf("List page has %d candidate links", candidates.Length())

	var found Link
	candidates.EachWithBreak(func(i int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if !rule.Matches(text) {
			return true
		}
		if u, ok := resolveHref(base, a); ok {
			found = Link{URL: u, Text: text}
			return false
		}
		return true
	})
	if found.URL != "" {
		log.WithField("text", found.Text).Info("Located download link")
		return found, nil
	}

	doc.Find("a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= maxScannedAnchors {
			return false
		}
		text := strings.TrimSpace(a.Text())
		if !rule.Matches(text) {
			return true
		}
		row := a.Parent()
		icon := row.Find(rule.Selector).First()
		if icon.Length() == 0 {
			icon = row.Parent().Find(rule.Selector).First()
		}
		if u, ok := resolveHref(base, icon); ok {
			found = Link{URL: u, Text: text}
			return false
		}
		return true
	})
	if found.URL != "" {
		log.WithField("text", found.Text).Info("Located download link next to matching entry")
		return found, nil
	}

	if s.opts.FallbackURL != "" {
		log.WithField("url", s.opts.FallbackURL).Warn("No download link matched, using fallback URL")
		return Link{URL: s.opts.FallbackURL, Fallback: true}, nil
	}
	return Link{}, fmt.Errorf("%w: no link for selector %q matched the text patterns", ErrLinkNotFound, rule.Selector)
}

func resolveHref(base *url.URL, a *goquery.Selection) (string, bool) {
	if a.Length() == 0 {
		return "", false
	}
	href, ok := a.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	if base == nil {
		return href, true
	}
	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// Download retrieves the spreadsheet behind link into memory.
func (s *Scraper) Download(ctx context.Context, link Link) (*Workbook, error) {
	log := logger.Log.WithField("url", link.URL)

	req, err := s.newRequest(ctx, http.MethodGet, link.URL, s.opts.ListURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	req.Header.Set("Accept", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,*/*;q=0.8")

	resp, err := s.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrDownload, link.URL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrDownload, err)
	}
	switch {
	case len(data) == 0:
		return nil, fmt.Errorf("%w: empty response from %s", ErrDownload, link.URL)
	case int64(len(data)) > s.opts.MaxDownloadBytes:
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrDownload, s.opts.MaxDownloadBytes)
	case !bytes.HasPrefix(data, zipMagic):
		return nil, fmt.Errorf("%w: %s did not return a spreadsheet (%s)", ErrDownload, link.URL, resp.Header.Get("Content-Type"))
	}

	log.WithField("bytes", len(data)).Info("Downloaded spreadsheet")
	return &Workbook{
		URL:         link.URL,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
