package parser

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/rssreader/feed"
)

func readFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/liftoff.xml")
	require.NoError(t, err)
	return string(data)
}

func TestParse_Sample20(t *testing.T) {
	f, err := Parse(readFixture(t))
	require.NoError(t, err)

	assert.Equal(t, "Liftoff News", f.Title)
	assert.Equal(t, "http://liftoff.msfc.nasa.gov/", f.Link)
	assert.Equal(t, "Liftoff to Space Exploration.", f.Description)
	require.Len(t, f.Items, 4)

	first := f.Items[0]
	assert.Equal(t, "Star City", first.Title)
	assert.Equal(t, "http://liftoff.msfc.nasa.gov/news/2003/news-starcity.asp", first.Link)
	assert.True(t, first.PubDate.Equal(time.Date(2003, 6, 3, 9, 39, 21, 0, time.UTC)))
	assert.Equal(t, time.UTC, first.PubDate.Location())
	assert.Equal(t, "[image 2]How do Americans get ready to work with Russians aboard the International Space Station? "+
		"They take a crash course in culture, language and protocol at Russia's Star City[3].", first.Description)
	assert.Equal(t, []feed.Link{
		{URL: "http://liftoff.msfc.nasa.gov/news/2003/news-starcity.asp", Kind: feed.KindLink},
		{URL: "https://example.com/images/logo.png", Kind: feed.KindImage},
		{URL: "http://howe.iki.rssi.ru/GCTC/gctc_e.htm", Kind: feed.KindLink},
	}, first.Links)
	assert.Equal(t, `<img src="https://example.com/images/logo.png">How do Americans get ready to work with Russians aboard the International Space Station? `+
		`They take a crash course in culture, language and protocol at Russia's <a href="http://howe.iki.rssi.ru/GCTC/gctc_e.htm">Star City</a>.`, first.DescriptionRaw)
	assert.Nil(t, first.Images)
}

func TestParse_ItemWithoutTitleAndLink(t *testing.T) {
	f, err := Parse(readFixture(t))
	require.NoError(t, err)

	second := f.Items[1]
	assert.Empty(t, second.Title)
	assert.Empty(t, second.Link)
	assert.Equal(t, "Sky watchers in Europe, Asia, and parts of Alaska and Canada will experience a partial eclipse of the Sun[1] on Saturday, May 31st.", second.Description)
	assert.Equal(t, []feed.Link{
		{URL: "http://science.nasa.gov/headlines/y2003/30may_solareclipse.htm", Kind: feed.KindLink},
	}, second.Links)

	third := f.Items[2]
	assert.Equal(t, "Before man travels to Mars, NASA hopes to design new engines that will let us fly through the Solar System more quickly. The proposed VASIMR engine would do that.", third.Description)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "plain text", content: "Invalid RSS"},
		{name: "empty", content: ""},
		{name: "atom", content: `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>Atom</title></feed>`},
		{name: "html", content: `<html><body><p>not a feed</p></body></html>`},
		{name: "empty channel", content: `<rss version="2.0"><channel></channel></rss>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			require.Error(t, err)

			var formatErr *feed.FormatError
			assert.True(t, errors.As(err, &formatErr))
		})
	}
}

func TestParse_DatesAndEnclosures(t *testing.T) {
	content := `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>Podcast</title>
  <item>
    <title>No date</title>
    <link>http://example.com/1</link>
  </item>
  <item>
    <title>Bad date</title>
    <pubDate>sometime last week</pubDate>
  </item>
  <item>
    <title>Offset date</title>
    <link>http://example.com/3</link>
    <description>Episode &lt;a href="http://example.com/3"&gt;notes&lt;/a&gt;</description>
    <pubDate>Sun, 02 Jan 2022 10:11:23 +0300</pubDate>
    <enclosure url="http://www.scripting.com/mp3s/weatherReportSuite.mp3" length="12216320" type="audio/mpeg" />
  </item>
</channel></rss>`

	f, err := Parse(content)
	require.NoError(t, err)
	require.Len(t, f.Items, 3)

	assert.True(t, f.Items[0].PubDate.IsZero())
	assert.True(t, f.Items[1].PubDate.IsZero())
	assert.Empty(t, f.Items[0].DescriptionRaw)
	assert.Empty(t, f.Items[0].Description)

	offset := f.Items[2]
	assert.Equal(t, "Sun, 02 Jan 2022 07:11:23 +0000", offset.PubDate.Format(feed.DateLayout))
	assert.Equal(t, "Episode notes[1]", offset.Description)
	assert.Equal(t, []feed.Link{
		{URL: "http://example.com/3", Kind: feed.KindLink},
		{URL: "http://www.scripting.com/mp3s/weatherReportSuite.mp3", Kind: feed.KindAudio},
	}, offset.Links)

	f.SortByDate()
	assert.Equal(t, "Offset date", f.Items[0].Title)
}

func TestParse_LimitAndOverlimit(t *testing.T) {
	f, err := Parse(readFixture(t))
	require.NoError(t, err)

	over := f.Clone()
	over.Limit(5)
	assert.Len(t, over.Items, 4)

	f.Limit(1)
	assert.Len(t, f.Items, 1)
}
