package render

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	r := New(Options{})
	assert.Equal(t, 2*time.Second, r.opts.IdleAfter)
	assert.Equal(t, 60*time.Second, r.opts.Timeout)
}

func TestToRecords_RoundTripsThroughSessionFormat(t *testing.T) {
	recs := toRecords([]*network.Cookie{
		{
			Name:     "JSESSIONID",
			Value:    `"ajax:987"`,
			Domain:   ".example.com",
			Path:     "/",
			Expires:  1767225600,
			Secure:   true,
			HTTPOnly: true,
		},
		{Name: "lang", Value: "en", Domain: ".example.com", Path: "/"},
	})
	require.Len(t, recs, 2)

	raw, err := json.Marshal(recs)
	require.NoError(t, err)

	var back []cookieRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "JSESSIONID", back[0].Name)
	assert.Equal(t, `"ajax:987"`, back[0].Value)
	assert.True(t, back[0].HTTPOnly)
	assert.Equal(t, float64(1767225600), back[0].Expiry)
}

func TestIdleTracker_FiresWithoutTraffic(t *testing.T) {
	tr := newIdleTracker(10 * time.Millisecond)
	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("idle channel never closed for a quiet page")
	}
}

func TestIdleTracker_WaitsForInflightRequests(t *testing.T) {
	tr := newIdleTracker(20 * time.Millisecond)
	tr.handle(&network.EventRequestWillBeSent{})

	select {
	case <-tr.Done():
		t.Fatal("went idle with a request in flight")
	case <-time.After(60 * time.Millisecond):
	}

	tr.handle(&network.EventLoadingFinished{})
	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("idle channel never closed after traffic finished")
	}
}
