package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardians/internal/controllers"
	"guardians/internal/models"
	"guardians/internal/provider/providertest"
	"guardians/internal/services"
)

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if f.token != "" {
		url += "?token=" + f.token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one of type typ arrives
func readUntil(t *testing.T, conn *websocket.Conn, typ string) services.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		var msg services.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", typ)
		if msg.Type == typ {
			return msg
		}
	}
}

// readAll reads until one message of every listed type has arrived, in any order
func readAll(t *testing.T, conn *websocket.Conn, types ...string) map[string]services.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	got := map[string]services.WebSocketMessage{}
	for len(got) < len(types) {
		var msg services.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %v", types)
		if slices.Contains(types, msg.Type) {
			if _, seen := got[msg.Type]; !seen {
				got[msg.Type] = msg
			}
		}
	}
	return got
}

func send(t *testing.T, conn *websocket.Conn, msg controllers.ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketPushesProjection(t *testing.T) {
	f := newFixture(t, fixtureOptions{auth: true})
	conn := dial(t, f)

	msg := readUntil(t, conn, services.MsgProjection)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["rows"], len(testRecords))

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentPing})
	readUntil(t, conn, services.MsgPong)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	f := newFixture(t, fixtureOptions{auth: true})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=aaaaaaaaaa.bbbbbbbbbb.cccccccccc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketViewIntents(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	conn := dial(t, f)
	readUntil(t, conn, services.MsgProjection)

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSetClass, Filter: "guardians"})
	require.Eventually(t, func() bool {
		return f.monitor.View().Snapshot().ClassFilter == models.FilterGuardians
	}, waitFor, 5*time.Millisecond)

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSetSort, Column: "memory", Direction: "desc"})
	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSetSearch, Text: "sys"})
	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSelect, PID: pidOf(4)})
	require.Eventually(t, func() bool {
		view := f.monitor.View().Snapshot()
		return view.SelectedPID != nil && view.SearchText == "sys" && view.Sort != nil
	}, waitFor, 5*time.Millisecond)

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentClearSelection})
	require.Eventually(t, func() bool { return f.monitor.View().Snapshot().SelectedPID == nil }, waitFor, 5*time.Millisecond)

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSetClass, Filter: "nope"})
	msg := readUntil(t, conn, services.MsgError)
	assert.Contains(t, msg.Error, "nope")

	send(t, conn, controllers.ClientMessage{Type: "dance"})
	msg = readUntil(t, conn, services.MsgError)
	assert.Contains(t, msg.Error, "dance")
}

func TestWebSocketAction(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	conn := dial(t, f)
	readUntil(t, conn, services.MsgProjection)

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentAction, Kind: "suspend", PID: pidOf(302)})
	msg := readUntil(t, conn, services.MsgError)
	assert.Contains(t, msg.Error, "not the resolved selection")

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSelect, PID: pidOf(302)})
	send(t, conn, controllers.ClientMessage{Type: controllers.IntentAction, Kind: "suspend", PID: pidOf(302)})
	// the result may reach the client before the acceptance reply
	msgs := readAll(t, conn, services.MsgActionAccepted, services.MsgActionResult)
	req, ok := msgs[services.MsgActionAccepted].Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, req["id"])

	res, ok := msgs[services.MsgActionResult].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, req["id"], res["id"])
	assert.Equal(t, []providertest.Call{{Op: providertest.OpSuspend, PID: 302}}, f.fake.Calls())
}

func pidOf(v int32) *int32 {
	return &v
}

func TestWebSocketIntentsRequirePID(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	conn := dial(t, f)
	readUntil(t, conn, services.MsgProjection)

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSelect})
	msg := readUntil(t, conn, services.MsgError)
	assert.Contains(t, msg.Error, "requires a pid")

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentAction, Kind: "suspend"})
	msg = readUntil(t, conn, services.MsgError)
	assert.Contains(t, msg.Error, "requires a pid")
	assert.Nil(t, f.monitor.View().Snapshot().SelectedPID)

	send(t, conn, controllers.ClientMessage{Type: controllers.IntentSelect, PID: pidOf(0)})
	require.Eventually(t, func() bool {
		sel := f.monitor.View().Snapshot().SelectedPID
		return sel != nil && *sel == 0
	}, waitFor, 5*time.Millisecond)
}
