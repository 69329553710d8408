package rss

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example Channel</title>
  <link>https://example.com</link>
  <item>
    <title>First</title>
    <link>https://example.com/1</link>
    <description>one</description>
    <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
    <dc:creator>Alice</dc:creator>
    <category>go</category>
    <category>rss</category>
    <enclosure url="https://example.com/1.jpg" type="image/jpeg" length="10"/>
  </item>
  <item>
    <title>Second</title>
    <link>https://example.com/2</link>
    <pubDate>not a date</pubDate>
  </item>
</channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <link href="https://atom.example/"/>
  <id>urn:feed</id>
  <updated>2024-03-01T10:00:00Z</updated>
  <entry>
    <title>Atom Entry</title>
    <link href="https://atom.example/1"/>
    <id>urn:1</id>
    <updated>2024-03-01T10:00:00+02:00</updated>
    <summary>sum</summary>
    <author><name>Bob</name></author>
  </entry>
</feed>`

const entityBomb = `<?xml version="1.0"?>
<!DOCTYPE rss [
  <!ENTITY a "aaaaaaaaaa">
  <!ENTITY b "&a;&a;&a;&a;&a;&a;&a;&a;&a;&a;">
]>
<rss version="2.0"><channel><title>&b;</title></channel></rss>`

const netscapeRSS = `<?xml version="1.0"?>
<!DOCTYPE rss PUBLIC "-//Netscape Communications//DTD RSS 0.91//EN" "http://my.netscape.com/publish/formats/rss-0.91.dtd">
<rss version="0.91"><channel><title>Old</title><link>https://old.example</link>
<item><title>Legacy</title><link>https://old.example/1</link></item>
</channel></rss>`

// rssWithLinks renders a minimal feed whose items carry the given links.
func rssWithLinks(links ...string) string {
	s := `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title><link>https://t.example</link>`
	for _, l := range links {
		s += `<item><title>` + l + `</title><link>` + l + `</link><pubDate>Tue, 10 Jun 2003 04:00:00 GMT</pubDate></item>`
	}
	return s + `</channel></rss>`
}
