package adlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchURL(t *testing.T) {
	u := SearchURL("https://example.com/", "Acme Corp", 25)
	assert.Equal(t, "https://example.com/ad-library/search?accountOwner=Acme+Corp&countries=ALL&start=25", u)
}

func TestFragmentURL(t *testing.T) {
	u := FragmentURL("https://example.com", "Acme", "")
	assert.Equal(t, "https://example.com/ad-library/searchPaginationFragment?accountOwner=Acme", u)

	u = FragmentURL("https://example.com", "Acme", "tok123")
	assert.Contains(t, u, "paginationToken=tok123")
}

func TestDetailURL_RoundTripsThroughAdID(t *testing.T) {
	u := DetailURL("https://example.com", "987654")
	assert.Equal(t, "https://example.com/ad-library/detail/987654", u)

	id, ok := AdIDFromURL(u)
	assert.True(t, ok)
	assert.Equal(t, "987654", id)

	_, ok = AdIDFromURL("https://example.com/ad-library/search")
	assert.False(t, ok)
}

func TestExtractAdIDs_DedupsPreservingOrder(t *testing.T) {
	html := []byte(`
		<a href="/ad-library/detail/111">one</a>
		<a href="/ad-library/detail/222">two</a>
		<a href="/ad-library/detail/111">one again</a>
		<a href="/ad-library/detail/333?src=list">three</a>
	`)
	assert.Equal(t, []string{"111", "222", "333"}, ExtractAdIDs(html))
}

func TestExtractAdIDs_Empty(t *testing.T) {
	assert.Empty(t, ExtractAdIDs([]byte("<html><body>no ads here</body></html>")))
}
