package devtools

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/microscope/pkg/cell"
)

type cart struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

func startInspector(t *testing.T, opts ...InspectorOption) (*Inspector, *httptest.Server) {
	t.Helper()
	in := NewInspector(opts...)
	ts := httptest.NewServer(in)
	t.Cleanup(ts.Close)
	return in, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func postJump(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestInspectorEndToEnd(t *testing.T) {
	in, ts := startInspector(t, WithHistoryLimit(10))
	hub := NewHub(WebsocketConnector("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws"), nil)
	defer hub.Close()

	c := cell.New(cart{}).Use(Middleware[cart]("cart", WithHub(hub)))
	c.SetValue(cart{Items: []string{"milk"}, Total: 3}, "add")
	c.SetValue(cart{Items: []string{"milk", "eggs"}, Total: 5}, "add")

	require.Eventually(t, func() bool {
		info, ok := in.Store("cart")
		return ok && len(info.History) == 3
	}, 2*time.Second, 10*time.Millisecond)

	var list []StoreInfo
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/stores", &list))
	require.Len(t, list, 1)
	assert.Equal(t, "cart", list[0].Name)
	assert.True(t, list[0].Connected)
	assert.Empty(t, list[0].History)

	var info StoreInfo
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/stores/cart", &info))
	assert.Equal(t, "add", info.Label)
	assert.Equal(t, hub.Instance(), info.Instance)
	assert.JSONEq(t, `{"items":["milk","eggs"],"total":5}`, string(info.State))
	assert.Equal(t, "@@INIT", info.History[0].Label)

	// push an explicit state
	assert.Equal(t, http.StatusAccepted, postJump(t, ts.URL+"/stores/cart/jump", `{"state":{"items":[],"total":0}}`))
	require.Eventually(t, func() bool { return c.Get().Total == 0 && c.Get().Items != nil }, 2*time.Second, 10*time.Millisecond)

	// jump back to the first add
	assert.Equal(t, http.StatusAccepted, postJump(t, ts.URL+"/stores/cart/jump", `{"index":1}`))
	require.Eventually(t, func() bool { return c.Get().Total == 3 }, 2*time.Second, 10*time.Millisecond)

	// time-travel commits are not reported back
	time.Sleep(50 * time.Millisecond)
	info, _ = in.Store("cart")
	assert.Len(t, info.History, 3)
}

func TestInspectorErrors(t *testing.T) {
	in, ts := startInspector(t)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/stores/missing", nil))
	assert.Equal(t, http.StatusNotFound, postJump(t, ts.URL+"/stores/missing/jump", `{"state":1}`))
	assert.Equal(t, http.StatusBadRequest, postJump(t, ts.URL+"/stores/missing/jump", `not json`))

	// a store whose client went away
	client := &inspectorClient{}
	in.record(client, Message{Type: TypeInit, Store: "gone", State: json.RawMessage(`1`)})
	in.disconnect(client)
	assert.Equal(t, http.StatusConflict, postJump(t, ts.URL+"/stores/gone/jump", `{"state":2}`))
	assert.Equal(t, http.StatusBadRequest, postJump(t, ts.URL+"/stores/gone/jump", `{"index":7}`))
}

func TestInspectorHistoryLimit(t *testing.T) {
	in := NewInspector(WithHistoryLimit(2))
	client := &inspectorClient{}

	in.record(client, Message{Type: TypeInit, Store: "s", State: json.RawMessage(`0`)})
	for _, v := range []string{"1", "2", "3"} {
		in.record(client, Message{Type: TypeAction, Store: "s", Label: "set", State: json.RawMessage(v)})
	}
	in.record(client, Message{Type: "PING", Store: "s"})

	info, ok := in.Store("s")
	require.True(t, ok)
	require.Len(t, info.History, 2)
	assert.Equal(t, "2", string(info.History[0].State))
	assert.Equal(t, "3", string(info.State))

	in.disconnect(client)
	info, _ = in.Store("s")
	assert.False(t, info.Connected)
}

func TestInspectorMetricsEndpoint(t *testing.T) {
	_, ts := startInspector(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
