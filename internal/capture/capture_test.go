package capture_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/actrec/internal/capture"
	"github.com/gosuda/actrec/internal/domain"
)

// ---------------------------------------------------------------------------
// Stringify
// ---------------------------------------------------------------------------

func TestStringify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "string unquoted", raw: `"hello"`, want: "hello"},
		{name: "escaped string", raw: `"a\nb"`, want: "a\nb"},
		{name: "number", raw: `42`, want: "42"},
		{name: "bool", raw: `true`, want: "true"},
		{name: "null", raw: `null`, want: "null"},
		{name: "undefined", raw: ``, want: "undefined"},
		{name: "object compacted", raw: `{ "a" : 1 , "b" : [1, 2] }`, want: `{"a":1,"b":[1,2]}`},
		{name: "array", raw: `[ "x", null ]`, want: `["x",null]`},
		{name: "invalid", raw: `{"a":`, want: capture.Unstringifiable},
		{name: "bare word", raw: `undefined`, want: capture.Unstringifiable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, capture.Stringify(json.RawMessage(tc.raw)))
		})
	}
}

func TestStringifyAll_KeepsOrder(t *testing.T) {
	t.Parallel()

	got := capture.StringifyAll([]json.RawMessage{
		json.RawMessage(`"first"`),
		json.RawMessage(`{broken`),
		json.RawMessage(`3`),
	})

	assert.Equal(t, []string{"first", capture.Unstringifiable, "3"}, got)
}

// ---------------------------------------------------------------------------
// GraphQL helpers
// ---------------------------------------------------------------------------

func TestOperationName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "explicit field", body: `{"operationName":"GetUser","query":"query Other { me { id } }"}`, want: "GetUser"},
		{name: "from query", body: `{"query":"  query ListOrders($first: Int) { orders { id } }"}`, want: "ListOrders"},
		{name: "mutation", body: `{"query":"mutation UpdateCart { update }"}`, want: "UpdateCart"},
		{name: "anonymous", body: `{"query":"{ me { id } }"}`, want: ""},
		{name: "batched", body: `[{"operationName":"A"},{"query":"{ anon }"},{"query":"subscription B { x }"}]`, want: "A,B"},
		{name: "double encoded", body: `"{\"operationName\":\"Nested\"}"`, want: "Nested"},
		{name: "not json", body: `operationName=GetUser`, want: ""},
		{name: "empty", body: ``, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, capture.OperationName([]byte(tc.body)))
		})
	}
}

func TestParseBody(t *testing.T) {
	t.Parallel()

	assert.JSONEq(t, `{"data":{"me":null}}`, string(capture.ParseBody([]byte(`{"data":{"me":null}}`))))
	assert.JSONEq(t, `"<html>oops</html>"`, string(capture.ParseBody([]byte(`<html>oops</html>`))))
	assert.Nil(t, capture.ParseBody(nil))
}

// ---------------------------------------------------------------------------
// ProtocolMatcher / Observer
// ---------------------------------------------------------------------------

func TestProtocolMatcher(t *testing.T) {
	t.Parallel()

	m := capture.NewProtocolMatcher(capture.DefaultProtocolPatterns)

	assert.True(t, m.Match("https://api.example.test/graphql"))
	assert.True(t, m.Match("https://example.test/GraphQL?op=x"))
	assert.False(t, m.Match("https://example.test/rest/users"))

	empty := capture.NewProtocolMatcher([]string{"", "  "})
	assert.False(t, empty.Match("https://example.test/graphql"))
}

type submitted struct {
	category domain.Category
	event    domain.Event
}

type fakeSink struct {
	got []submitted
	err error
}

func (f *fakeSink) Submit(_ context.Context, c domain.Category, ev domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, submitted{category: c, event: ev})
	return nil
}

func TestObserver_PlainRequest(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	obs := capture.NewObserver(sink, capture.NewProtocolMatcher(capture.DefaultProtocolPatterns))

	err := obs.RequestCompleted(context.Background(), domain.NetworkEvent{Timestamp: 1, URL: "https://example.test/app.js", Method: "GET"})
	require.NoError(t, err)

	require.Len(t, sink.got, 1)
	assert.Equal(t, domain.CategoryNetwork, sink.got[0].category)
}

func TestObserver_ProtocolRequestRecordedTwice(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	obs := capture.NewObserver(sink, capture.NewProtocolMatcher(capture.DefaultProtocolPatterns))

	status := 200
	ev := domain.NetworkEvent{
		Timestamp:   1000,
		URL:         "https://api.example.test/graphql",
		Method:      "POST",
		StatusCode:  &status,
		RequestBody: json.RawMessage(`{"operationName":"GetCart"}`),
	}
	require.NoError(t, obs.RequestCompleted(context.Background(), ev))

	require.Len(t, sink.got, 2)
	network := sink.got[0].event.(domain.NetworkEvent)
	protocol := sink.got[1].event.(domain.NetworkEvent)

	assert.Equal(t, domain.CategoryNetwork, sink.got[0].category)
	assert.Equal(t, domain.CategoryProtocol, sink.got[1].category)
	assert.False(t, network.ProtocolMarker)
	assert.True(t, protocol.ProtocolMarker)
	assert.Equal(t, "GetCart", protocol.OperationName)
	assert.Equal(t, network.URL, protocol.URL)
	assert.Equal(t, network.Timestamp, protocol.Timestamp)
	assert.NotEqual(t, uuid.Nil, network.ID)
	assert.NotEqual(t, network.ID, protocol.ID, "entries are independent")

	// Independent copies: mutating one does not leak into the other.
	*protocol.StatusCode = 500
	assert.Equal(t, 200, *network.StatusCode)
}

func TestObserver_SinkError(t *testing.T) {
	t.Parallel()

	boom := errors.New("queue closed")
	obs := capture.NewObserver(&fakeSink{err: boom}, capture.NewProtocolMatcher(capture.DefaultProtocolPatterns))

	err := obs.RequestCompleted(context.Background(), domain.NetworkEvent{URL: "https://x.test/graphql"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

// ---------------------------------------------------------------------------
// Console builders
// ---------------------------------------------------------------------------

func TestConsoleBuilders(t *testing.T) {
	t.Parallel()

	tab := 4
	origin := domain.Origin{TabID: &tab, URL: "https://example.test/page"}

	call := capture.ConsoleCall(domain.ConsoleLevelWarn, 10,
		[]json.RawMessage{json.RawMessage(`"careful"`), json.RawMessage(`{"n":1}`)}, "at x", origin)
	assert.Equal(t, domain.ConsoleLevelWarn, call.Level)
	assert.Equal(t, []string{"careful", `{"n":1}`}, call.Messages)
	assert.Equal(t, "at x", call.StackTrace)
	assert.Equal(t, origin, call.Origin)

	uncaught := capture.UncaughtError(11, "x is not defined", "", origin)
	assert.Equal(t, domain.ConsoleLevelError, uncaught.Level)
	assert.Equal(t, []string{"x is not defined"}, uncaught.Messages)

	rejection := capture.UnhandledRejection(12, json.RawMessage(`"timeout"`), "", origin)
	assert.Equal(t, domain.ConsoleLevelError, rejection.Level)
	assert.Equal(t, []string{"Unhandled Promise Rejection: timeout"}, rejection.Messages)
}
