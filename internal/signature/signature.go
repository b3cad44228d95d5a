package signature

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// MaxSize bounds a stored HTML signature (64KB)
const MaxSize = 64 * 1024

// ErrTooLarge is returned for signatures above MaxSize
var ErrTooLarge = errors.New("signature too large")

// Validate checks that an HTML signature is storable
func Validate(htmlContent string) error {
	if len(htmlContent) > MaxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(htmlContent), MaxSize)
	}
	if _, err := html.Parse(strings.NewReader(htmlContent)); err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	return nil
}

// PlainText renders an HTML signature as readable text, one line per block
func PlainText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var lines []string
	var line strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	// Tags to skip (non-content)
	skipTags := map[string]bool{
		"script": true, "style": true, "head": true,
		"noscript": true, "iframe": true,
	}

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}

		if n.Type == html.TextNode {
			line.WriteString(n.Data)
			line.WriteString(" ")
		}

		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "http") {
				defer func() {
					line.WriteString("<" + strings.TrimPrefix(href, "mailto:") + "> ")
				}()
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		// Break lines after block elements
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "br", "tr", "table":
				flush()
			}
		}
	}

	extract(doc)
	flush()

	return strings.Join(lines, "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
