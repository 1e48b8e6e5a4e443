package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	data := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
	<title>Test Feed</title>
	<item>
		<title>First Article</title>
		<link>https://example.com/first</link>
		<description>First description</description>
		<content:encoded><![CDATA[<p>Full first content</p>]]></content:encoded>
		<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
		<dc:creator>Jane Reporter</dc:creator>
		<media:content url="https://example.com/first.jpg" type="image/jpeg"/>
		<media:thumbnail url="https://example.com/first-thumb.jpg"/>
	</item>
	<item>
		<title>Second Article</title>
		<link>https://example.com/second</link>
		<description>Second description</description>
		<enclosure url="https://example.com/second.png" type="image/png" length="1234"/>
		<enclosure url="https://example.com/second.mp3" type="audio/mpeg" length="5678"/>
	</item>
</channel>
</rss>`

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	parser := NewParser()

	items, err := parser.Parse([]byte(data), now)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "First Article", first.Title)
	assert.Equal(t, "https://example.com/first", first.Link)
	assert.Equal(t, "First description", first.Description)
	assert.Equal(t, "<p>Full first content</p>", first.Content, "content:encoded preferred over description")
	assert.Equal(t, "Jane Reporter", first.Author)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), first.Published)
	require.Len(t, first.ImageCandidates, 2)
	assert.Equal(t, "https://example.com/first.jpg", first.ImageCandidates[0], "media:content before media:thumbnail")
	assert.Equal(t, "https://example.com/first-thumb.jpg", first.ImageCandidates[1])

	second := items[1]
	assert.Equal(t, "Second description", second.Content, "description fallback when content:encoded missing")
	assert.Equal(t, now, second.Published, "missing date falls back to ingestion time")
	require.Len(t, second.ImageCandidates, 1, "non-image enclosure ignored")
	assert.Equal(t, "https://example.com/second.png", second.ImageCandidates[0])
}

func TestParser_ParseSkipsIncompleteItems(t *testing.T) {
	data := `<?xml version="1.0"?>
<rss version="2.0">
<channel>
	<title>Test Feed</title>
	<item>
		<title>Has Everything</title>
		<link>https://example.com/ok</link>
	</item>
	<item>
		<title></title>
		<link>https://example.com/no-title</link>
	</item>
	<item>
		<title>No Link</title>
	</item>
	<item>
		<title>   </title>
		<link>https://example.com/blank-title</link>
	</item>
	<item>
		<title>Also Fine</title>
		<link>https://example.com/ok2</link>
	</item>
</channel>
</rss>`

	parser := NewParser()
	items, err := parser.Parse([]byte(data), time.Now())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Has Everything", items[0].Title)
	assert.Equal(t, "Also Fine", items[1].Title)
}

func TestParser_ParseAtom(t *testing.T) {
	data := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Feed</title>
	<entry>
		<title>Atom Entry</title>
		<link href="https://example.com/atom-entry"/>
		<updated>2024-03-15T10:30:00Z</updated>
		<author><name>Atom Author</name></author>
		<summary>Atom summary text</summary>
	</entry>
</feed>`

	parser := NewParser()
	items, err := parser.Parse([]byte(data), time.Now())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Atom Entry", item.Title)
	assert.Equal(t, "https://example.com/atom-entry", item.Link)
	assert.Equal(t, "Atom Author", item.Author)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), item.Published, "updated used when published missing")
}

func TestParser_ParseMalformed(t *testing.T) {
	parser := NewParser()

	_, err := parser.Parse([]byte("this is not xml at all"), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse feed")
}

func TestParser_ParseEmptyChannel(t *testing.T) {
	data := `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`

	parser := NewParser()
	items, err := parser.Parse([]byte(data), time.Now())
	require.NoError(t, err)
	assert.Empty(t, items)
}
