// Package opml handles importing and exporting OPML subscription lists.
package opml

import "encoding/xml"

// FeedType is the outline type attribute that marks a feed.
const FeedType = "rss"

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title string `xml:"title,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is a folder or a feed. Feed attributes are pointers so that an
// empty value is still written as a present attribute.
type Outline struct {
	Text     string    `xml:"text,attr"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   *string   `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  *string   `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}
