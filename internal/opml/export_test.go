package opml

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/feedbox/internal/database"
	"github.com/bryan-buckman/feedbox/internal/model"
)

func TestExport_Layout(t *testing.T) {
	out, err := Export([]model.FolderWithFeeds{
		{
			Folder: model.Folder{ID: model.RootFolderID, Name: "root"},
			Feeds:  []model.Feed{{Name: "Top", URL: "https://top.example", FeedURL: "https://top.example/feed"}},
		},
		{
			Folder: model.Folder{ID: 2, Name: "Tech & Science"},
			Feeds:  []model.Feed{{Name: "Go", URL: "", FeedURL: "https://go.example/feed"}},
		},
	})
	require.NoError(t, err)

	want := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head>
    <title>My Feeds</title>
  </head>
  <body>
    <outline text="Top" type="rss" xmlUrl="https://top.example/feed" htmlUrl="https://top.example"></outline>
    <outline text="Tech &amp; Science">
      <outline text="Go" type="rss" xmlUrl="https://go.example/feed" htmlUrl=""></outline>
    </outline>
  </body>
</opml>`
	assert.Equal(t, want, string(out))
}

func TestExport_RootFeedsKeepTheirPosition(t *testing.T) {
	out, err := Export([]model.FolderWithFeeds{
		{
			Folder: model.Folder{ID: 2, Name: "alpha"},
			Feeds:  []model.Feed{{Name: "a", URL: "https://a.example", FeedURL: "https://a.example/feed"}},
		},
		{
			Folder: model.Folder{ID: model.RootFolderID, Name: "root"},
			Feeds:  []model.Feed{{Name: "r", URL: "https://r.example", FeedURL: "https://r.example/feed"}},
		},
		{Folder: model.Folder{ID: 3, Name: "zeta"}},
	})
	require.NoError(t, err)

	body := string(out)
	alpha := strings.Index(body, `<outline text="alpha">`)
	root := strings.Index(body, `<outline text="r" type="rss"`)
	zeta := strings.Index(body, `<outline text="zeta">`)
	require.True(t, alpha >= 0 && root >= 0 && zeta >= 0, body)
	assert.Less(t, alpha, root)
	assert.Less(t, root, zeta)
}

func TestExport_FollowsNameOrderFromStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.SQLite, filepath.Join(t.TempDir(), "order.db"))
	require.NoError(t, err)
	defer db.Close()

	for _, name := range []string{"zeta", "alpha"} {
		id, err := db.CreateFolder(ctx, name)
		require.NoError(t, err)
		for _, feed := range []string{"y", "b"} {
			_, err := db.CreateFeed(ctx, model.Feed{
				FolderID: id,
				Name:     feed,
				URL:      "https://" + feed + "." + name + ".example",
				FeedURL:  "https://" + feed + "." + name + ".example/feed",
			})
			require.NoError(t, err)
		}
	}
	_, err = db.CreateFeed(ctx, model.Feed{FolderID: model.RootFolderID, Name: "r", URL: "https://r.example", FeedURL: "https://r.example/feed"})
	require.NoError(t, err)

	tree, err := db.FoldersWithFeeds(ctx)
	require.NoError(t, err)
	out, err := Export(tree)
	require.NoError(t, err)

	body := string(out)
	var positions []int
	for _, marker := range []string{
		`<outline text="alpha">`,
		`xmlUrl="https://b.alpha.example/feed"`,
		`xmlUrl="https://y.alpha.example/feed"`,
		`xmlUrl="https://r.example/feed"`,
		`<outline text="zeta">`,
		`xmlUrl="https://b.zeta.example/feed"`,
		`xmlUrl="https://y.zeta.example/feed"`,
	} {
		i := strings.Index(body, marker)
		require.GreaterOrEqual(t, i, 0, marker)
		positions = append(positions, i)
	}
	assert.IsIncreasing(t, positions)
}

func TestExport_Deterministic(t *testing.T) {
	tree := []model.FolderWithFeeds{{Folder: model.Folder{ID: 3, Name: "Empty"}}}

	a, err := Export(tree)
	require.NoError(t, err)
	b, err := Export(tree)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

type feedTuple struct {
	folder, name, site, feedURL string
}

func snapshot(t *testing.T, db *database.DB) (folders []string, feeds []feedTuple) {
	t.Helper()

	tree, err := db.FoldersWithFeeds(context.Background())
	require.NoError(t, err)
	for _, f := range tree {
		if f.ID != model.RootFolderID {
			folders = append(folders, f.Name)
		}
		for _, fe := range f.Feeds {
			folder := f.Name
			if f.ID == model.RootFolderID {
				folder = ""
			}
			feeds = append(feeds, feedTuple{folder, fe.Name, fe.URL, fe.FeedURL})
		}
	}
	return folders, feeds
}

type storeCreator struct{ db *database.DB }

func (s storeCreator) Create(ctx context.Context, f model.Feed) (int64, error) {
	return s.db.CreateFeed(ctx, f)
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src, err := database.Open(ctx, database.SQLite, filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)
	defer src.Close()

	techID, err := src.CreateFolder(ctx, "Tech")
	require.NoError(t, err)
	_, err = src.CreateFolder(ctx, "Empty")
	require.NoError(t, err)
	for _, f := range []model.Feed{
		{FolderID: model.RootFolderID, Name: "Top", URL: "https://top.example", FeedURL: "https://top.example/feed"},
		{FolderID: techID, Name: "Go", URL: "https://go.example", FeedURL: "https://go.example/feed"},
		{FolderID: techID, Name: "Rust", URL: "https://rust.example", FeedURL: "https://rust.example/feed"},
	} {
		_, err := src.CreateFeed(ctx, f)
		require.NoError(t, err)
	}

	tree, err := src.FoldersWithFeeds(ctx)
	require.NoError(t, err)
	doc, err := Export(tree)
	require.NoError(t, err)

	dst, err := database.Open(ctx, database.SQLite, filepath.Join(t.TempDir(), "dst.db"))
	require.NoError(t, err)
	defer dst.Close()

	imp := NewImporter(ImporterConfig{Folders: dst, Feeds: storeCreator{dst}})
	rep, err := imp.Import(ctx, strings.NewReader(string(doc)))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.OpenFrames)

	wantFolders, wantFeeds := snapshot(t, src)
	gotFolders, gotFeeds := snapshot(t, dst)
	assert.ElementsMatch(t, wantFolders, gotFolders)
	assert.ElementsMatch(t, wantFeeds, gotFeeds)

	// A second import of the same document changes nothing.
	rep, err = imp.Import(ctx, strings.NewReader(string(doc)))
	require.NoError(t, err)
	assert.Zero(t, rep.FoldersCreated)
	assert.Zero(t, rep.FeedsCreated)
	assert.Equal(t, 3, rep.FeedsDuplicate)

	againFolders, againFeeds := snapshot(t, dst)
	assert.ElementsMatch(t, gotFolders, againFolders)
	assert.ElementsMatch(t, gotFeeds, againFeeds)
}
