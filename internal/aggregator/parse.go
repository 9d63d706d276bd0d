// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package aggregator

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// supportedSourceStrings maps a group of equivalent link-text substrings
// to the source kind they identify, highest-priority group first. Torrent
// text is checked ahead of the generic "link N" catch-alls so a link
// titled "Torrent Link" doesn't fall through to direct.
var supportedSourceStrings = []struct {
	kind  domain.SourceKind
	texts []string
}{
	{domain.SourceMega, []string{"mega", "mega link"}},
	{domain.SourceMediaFire, []string{"mediafire", "mediafire link"}},
	{domain.SourceWeTransfer, []string{"wetransfer", "we transfer", "wetransfer link", "we transfer link"}},
	{domain.SourcePixelDrain, []string{"pixeldrain", "pixel drain", "pixeldrain link", "pixel drain link"}},
	{domain.SourceTorrent, []string{"torrent", "torrent link", "magnet", "magnet link"}},
	{domain.SourceDirect, []string{
		"download now", "main download", "main server", "main link",
		"mirror download", "mirror server", "mirror link", "link 1", "link 2",
	}},
}

// sourceKindForLinkText classifies an anchor's visible text. Text is
// compared after lowercasing and trimming, matching whole entries first
// and falling back to substring containment for text with extra words
// around the service name.
func sourceKindForLinkText(text string) (domain.SourceKind, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}
	for _, group := range supportedSourceStrings {
		for _, candidate := range group.texts {
			if text == candidate {
				return group.kind, true
			}
		}
	}
	for _, group := range supportedSourceStrings {
		for _, candidate := range group.texts {
			if strings.Contains(text, candidate) {
				return group.kind, true
			}
		}
	}
	return "", false
}

// rawArticle is one search-result-page hit before fingerprinting.
type rawArticle struct {
	Title string
	Link  string
}

func parseDocument(body string) (*html.Node, error) {
	return html.Parse(strings.NewReader(body))
}

// extractArticles pulls every `article.post`'s first link and
// `h1.post-title` text from a getcomics-style search-results page.
func extractArticles(body string) ([]rawArticle, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	articles := findAll(doc, func(n *html.Node) bool {
		return isElem(n, atom.Article) && hasClass(n, "post")
	})

	out := make([]rawArticle, 0, len(articles))
	for _, a := range articles {
		linkNode := findTag(a, atom.A)
		if linkNode == nil {
			continue
		}
		href, ok := attr(linkNode, "href")
		if !ok {
			continue
		}
		titleNode := findFirst(a, func(n *html.Node) bool {
			return isElem(n, atom.H1) && hasClass(n, "post-title")
		})
		title := ""
		if titleNode != nil {
			title = textPlain(titleNode)
		}
		out = append(out, rawArticle{Title: title, Link: href})
	}
	return out, nil
}

// maxPageNumber parses the highest page number out of the `page-numbers`
// elements on a search-results page, capped at 10. A page with no
// pagination markers has exactly one page.
func maxPageNumber(body string) (int, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return 0, err
	}

	pages := findAll(doc, func(n *html.Node) bool {
		return (isElem(n, atom.A) || isElem(n, atom.Span)) && hasClass(n, "page-numbers")
	})
	if len(pages) == 0 {
		return 1, nil
	}

	last := textPlain(pages[len(pages)-1])
	n, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		// The last "page-numbers" element is sometimes "Next →"; walk
		// backwards for the first one that parses as a number.
		for i := len(pages) - 2; i >= 0; i-- {
			if v, perr := strconv.Atoi(strings.TrimSpace(textPlain(pages[i]))); perr == nil {
				n = v
				err = nil
				break
			}
		}
		if err != nil {
			return 1, nil
		}
	}
	if n > 10 {
		n = 10
	}
	return n, nil
}

// rawGroup is one button-block or list-block download group before links
// are filtered by blocklist/configured-client/service-preference.
type rawGroup struct {
	Title string
	Links map[domain.SourceKind][]string
}

var yearDigits = regexp.MustCompile(`\b\d{4}\b`)

// extractDownloadGroups parses an article page's `section.post-contents`
// into download groups via two independent extractors: button blocks and
// list blocks.
func extractDownloadGroups(body string) ([]rawGroup, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	section := findFirst(doc, func(n *html.Node) bool {
		return isElem(n, atom.Section) && hasClass(n, "post-contents")
	})
	if section == nil {
		return nil, nil
	}

	var groups []rawGroup
	groups = append(groups, extractButtonBlocks(section)...)
	groups = append(groups, extractListBlocks(section)...)
	return groups, nil
}

// extractButtonBlocks finds every `<p>` containing "Language" with no
// nested `<p>` and collects the button-center anchors that follow it up
// to the next `<hr>`.
func extractButtonBlocks(section *html.Node) []rawGroup {
	headers := findAll(section, func(n *html.Node) bool {
		if !isElem(n, atom.P) {
			return false
		}
		if !strings.Contains(textPlain(n), "Language") {
			return false
		}
		return findTag(n, atom.P) == nil
	})

	var out []rawGroup
	for _, header := range headers {
		nulText := textNUL(header)
		title, _, _ := strings.Cut(nulText, "\x00")
		title = strings.TrimSpace(title)

		if !yearDigits.MatchString(title) {
			if _, rest, found := strings.Cut(nulText, "Year :\x00 "); found {
				yearField, _, _ := strings.Cut(rest, " |")
				yearField = strings.TrimSpace(yearField)
				if yearField != "" {
					title += " --" + yearField + "--"
				}
			}
		}

		if strings.Contains(strings.ToLower(title), "variant cover") {
			continue
		}

		links := map[domain.SourceKind][]string{}
		for _, n := range nextSiblingElements(section, header) {
			if !(isElem(n, atom.Div) && hasClass(n, "aio-button-center")) {
				continue
			}
			a := findTag(n, atom.A)
			if a == nil {
				continue
			}
			href, ok := attr(a, "href")
			if !ok {
				continue
			}
			kind, ok := sourceKindForLinkText(textPlain(a))
			if !ok {
				continue
			}
			links[kind] = append(links[kind], href)
		}
		if len(links) > 0 {
			out = append(out, rawGroup{Title: title, Links: links})
		}
	}
	return out
}

// extractListBlocks finds every `<li>` under a `<ul>` whose anchors are
// link buttons.
func extractListBlocks(section *html.Node) []rawGroup {
	items := findAll(section, func(n *html.Node) bool {
		if !isElem(n, atom.Li) || n.Parent == nil || !isElem(n.Parent, atom.Ul) {
			return false
		}
		anchors := findAllTag(n, atom.A)
		if len(anchors) == 0 {
			return false
		}
		pipes := strings.Count(textPlain(n), "|")
		if pipes > 0 && pipes == len(anchors)-1 {
			return true
		}
		_, ok := sourceKindForLinkText(textPlain(anchors[0]))
		return ok
	})

	var out []rawGroup
	for _, li := range items {
		title, _, _ := strings.Cut(textNUL(li), "\x00")
		title = strings.TrimSpace(title)
		if strings.Contains(strings.ToLower(title), "variant cover") {
			continue
		}

		links := map[domain.SourceKind][]string{}
		for _, a := range findAllTag(li, atom.A) {
			href, ok := attr(a, "href")
			if !ok {
				continue
			}
			kind, ok := sourceKindForLinkText(textPlain(a))
			if !ok {
				continue
			}
			links[kind] = append(links[kind], href)
		}
		if len(links) > 0 {
			out = append(out, rawGroup{Title: title, Links: links})
		}
	}
	return out
}
