package opml

import (
	"encoding/xml"
	"fmt"

	"github.com/bryan-buckman/feedbox/internal/model"
)

// ExportTitle is the head title of exported documents.
const ExportTitle = "My Feeds"

// Export renders folders as an OPML 2.0 document in input order. Feeds of
// the root folder become top-level outlines at the root folder's position;
// every other folder becomes a folder outline holding its feeds.
func Export(folders []model.FolderWithFeeds) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head:    Head{Title: ExportTitle},
	}

	for _, f := range folders {
		if f.ID == model.RootFolderID {
			for _, feed := range f.Feeds {
				doc.Body.Outlines = append(doc.Body.Outlines, feedOutline(feed))
			}
			continue
		}

		folder := Outline{Text: f.Name}
		for _, feed := range f.Feeds {
			folder.Outlines = append(folder.Outlines, feedOutline(feed))
		}
		doc.Body.Outlines = append(doc.Body.Outlines, folder)
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal opml: %w", err)
	}
	return append([]byte(xml.Header), output...), nil
}

func feedOutline(f model.Feed) Outline {
	xmlURL, htmlURL := f.FeedURL, f.URL
	return Outline{
		Text:    f.Name,
		Type:    FeedType,
		XMLURL:  &xmlURL,
		HTMLURL: &htmlURL,
	}
}
