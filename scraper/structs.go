package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrAuthFailed   = errors.New("authentication failed")
	ErrIndexFetch   = errors.New("index page fetch failed")
	ErrLinkNotFound = errors.New("download link not found")
	ErrDownload     = errors.New("download failed")
)

// LinkRule is the one place that knows how the portal presents the
// download link: a CSS selector for candidate anchors and patterns that
// must all match the link text.
type LinkRule struct {
	Selector string
	Patterns []*regexp.Regexp
}

// NewLinkRule compiles the text patterns of a rule.
func NewLinkRule(selector string, patterns []string) (LinkRule, error) {
	rule := LinkRule{Selector: selector}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return LinkRule{}, fmt.Errorf("invalid link pattern %q: %w", p, err)
		}
		rule.Patterns = append(rule.Patterns, re)
	}
	return rule, nil
}

// Matches reports whether text satisfies every pattern of the rule.
func (r LinkRule) Matches(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, re := range r.Patterns {
		if !re.MatchString(text) {
			return false
		}
	}
	return true
}

// Link is the located spreadsheet download.
type Link struct {
	URL      string
	Text     string
	Fallback bool
}

// Workbook is a downloaded spreadsheet.
type Workbook struct {
	URL         string
	ContentType string
	Data        []byte
}
