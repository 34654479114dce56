package reqid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func headerLookup(values map[string]string) func(string) string {
	return func(name string) string {
		return values[name]
	}
}

func TestGetParsesHexPrefixFromConfiguredHeader(t *testing.T) {
	h := Header{RequestID: "X-Request-Id"}
	id, trace := Get(h, headerLookup(map[string]string{"X-Request-Id": "deadbeefcafebabe1234"}))
	assert.Equal(t, uint64(0xdeadbeefcafebabe), id)
	assert.False(t, trace)
}

func TestGetFallsBackToRandomWhenHeaderAbsent(t *testing.T) {
	h := Header{RequestID: "X-Request-Id"}
	id, _ := Get(h, headerLookup(nil))
	assert.NotZero(t, id)
}

func TestGetFallsBackToRandomOnUnparsableHeader(t *testing.T) {
	h := Header{RequestID: "X-Request-Id"}
	id, _ := Get(h, headerLookup(map[string]string{"X-Request-Id": "not-hex-at-all!!"}))
	assert.NotZero(t, id)
}

func TestGetTraceBitRequiresPositiveInteger(t *testing.T) {
	h := Header{Trace: "X-Trace"}

	_, trace := Get(h, headerLookup(map[string]string{"X-Trace": "1"}))
	assert.True(t, trace)

	_, trace = Get(h, headerLookup(map[string]string{"X-Trace": "0"}))
	assert.False(t, trace)

	_, trace = Get(h, headerLookup(map[string]string{"X-Trace": "not-a-number"}))
	assert.False(t, trace)

	_, trace = Get(h, headerLookup(nil))
	assert.False(t, trace)
}

func TestGetWithoutRequestIDHeaderConfiguredAlwaysRandomizes(t *testing.T) {
	h := Header{}
	id, trace := Get(h, headerLookup(map[string]string{"X-Request-Id": "deadbeef"}))
	assert.NotZero(t, id)
	assert.False(t, trace)
}
