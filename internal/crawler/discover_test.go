package crawler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealscout/pkg/errors"
)

func TestDiscoverFiltersAndDedupes(t *testing.T) {
	site, _ := LookupSite("flipkart")
	searcher := &mockSearcher{pages: map[int][]SearchItem{
		1: {
			{Link: "https://www.flipkart.com/a/p/itm1", Title: "A"},
			{Link: "https://www.flipkart.com/search?q=nike", Title: "Search"},
			{Link: "https://www.flipkart.com/b/p/itm2", Title: "B"},
		},
		11: {
			{Link: "https://www.flipkart.com/a/p/itm1", Title: "A again"},
			{Link: "https://www.flipkart.com/c/p/itm3", Title: "C"},
		},
		21: {
			{Link: "https://www.flipkart.com/d/p/itm4", Title: "D"},
		},
	}}

	d := NewDiscoverer(searcher, 3)
	urls, err := d.Discover(context.Background(), "Nike shoes", site, 30)
	require.NoError(t, err)

	require.Len(t, urls, 4)
	assert.Equal(t, "A", urls[0].Title)
	assert.Equal(t, "https://www.flipkart.com/b/p/itm2", urls[1].URL)
	assert.Equal(t, "https://www.flipkart.com/c/p/itm3", urls[2].URL)
	assert.Equal(t, []int{1, 11, 21}, searcher.starts)
	assert.Equal(t, "Nike shoes site:flipkart.com", searcher.queries[0])
}

func TestDiscoverStopsOnEmptyPage(t *testing.T) {
	site, _ := LookupSite("amazon")
	searcher := &mockSearcher{pages: map[int][]SearchItem{
		1: {{Link: "https://www.amazon.in/x/dp/B01", Title: "X"}},
	}}

	urls, err := NewDiscoverer(searcher, 3).Discover(context.Background(), "q", site, 30)
	require.NoError(t, err)
	assert.Len(t, urls, 1)
	assert.Equal(t, []int{1, 11}, searcher.starts)
}

func TestDiscoverStopsOnNon200(t *testing.T) {
	site, _ := LookupSite("amazon")
	searcher := &mockSearcher{
		pages: map[int][]SearchItem{
			1:  {{Link: "https://www.amazon.in/x/dp/B01", Title: "X"}},
			21: {{Link: "https://www.amazon.in/y/dp/B02", Title: "Y"}},
		},
		errs: map[int]error{11: &StatusError{StatusCode: 403}},
	}

	urls, err := NewDiscoverer(searcher, 3).Discover(context.Background(), "q", site, 30)
	require.NoError(t, err)
	assert.Len(t, urls, 1)
	assert.Equal(t, []int{1, 11}, searcher.starts)
}

func TestDiscoverRequestErrorCostsOnlyThatPage(t *testing.T) {
	site, _ := LookupSite("amazon")
	searcher := &mockSearcher{
		pages: map[int][]SearchItem{
			1:  {{Link: "https://www.amazon.in/x/dp/B01", Title: "X"}},
			21: {{Link: "https://www.amazon.in/y/dp/B02", Title: "Y"}},
		},
		errs: map[int]error{11: errors.NewUpstream(errors.StageDiscover, "timeout", fmt.Errorf("dial tcp"))},
	}

	urls, err := NewDiscoverer(searcher, 3).Discover(context.Background(), "q", site, 30)
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestDiscoverRateLimitedWithNothingCollected(t *testing.T) {
	site, _ := LookupSite("myntra")
	searcher := &mockSearcher{errs: map[int]error{1: errors.NewRateLimit(errors.StageDiscover, time.Minute)}}

	urls, err := NewDiscoverer(searcher, 3).Discover(context.Background(), "q", site, 30)
	assert.Empty(t, urls)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
}

func TestPageCount(t *testing.T) {
	d := NewDiscoverer(&mockSearcher{}, 3)
	assert.Equal(t, 1, d.PageCount(5))
	assert.Equal(t, 3, d.PageCount(30))
	assert.Equal(t, 3, d.PageCount(100))
	assert.Equal(t, 1, d.PageCount(0))

	assert.Equal(t, 10, NewDiscoverer(&mockSearcher{}, 50).PageCount(1000))
}
