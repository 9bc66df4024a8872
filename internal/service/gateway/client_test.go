package gateway

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfillFetchesSummaries(t *testing.T) {
	var gotAuth, gotDays string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/summaries", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotDays = r.URL.Query().Get("days")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"date":"2026-08-28T00:00:00Z","resting_hr":54,"hrv_daily_rmssd":48.5,"sleep_duration_min":432,"steps":8200},
			{"date":"2026-08-29T00:00:00Z","resting_hr":56,"hrv_daily_rmssd":null,"sleep_duration_min":401,"steps":10400}
		]`))
	}))
	defer srv.Close()

	c := New("secret-token", "", srv.URL, nil, time.Second, time.Second).(*Client)
	got, err := c.Backfill(context.Background(), 14)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "14", gotDays)
	assert.Equal(t, 54.0, got[0].RestingHR)
	assert.Equal(t, 48.5, got[0].HRVRMSSD)
	assert.True(t, math.IsNaN(got[1].HRVRMSSD))
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), got[1].Date)
}

func TestBackfillRequiresRestURL(t *testing.T) {
	c := New("tok", "", "", nil, time.Second, time.Second).(*Client)
	_, err := c.Backfill(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rest url")
}

func TestStreamRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// expect one subscribe frame per stream
		var sub map[string]string
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub["type"])
		assert.Equal(t, "daily_summaries", sub["stream"])

		// an unrelated frame type is skipped by the reader
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "heartbeat"}))

		frame := map[string]interface{}{
			"type": "daily_summary",
			"data": []map[string]interface{}{
				{"date": "2026-08-29T00:00:00Z", "resting_hr": 55.0, "hrv_daily_rmssd": 44.0},
			},
		}
		b, err := json.Marshal(frame)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))

		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New("tok", wsURL, "", []string{"daily_summaries"}, time.Second, time.Minute).(*Client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.True(t, c.IsConnected())
	require.NoError(t, c.Subscribe(ctx))

	summaries, errs := c.Read(ctx)
	select {
	case s := <-summaries:
		require.NotNil(t, s)
		assert.Equal(t, 55.0, s.RestingHR)
		assert.Equal(t, 44.0, s.HRVRMSSD)
		assert.True(t, math.IsNaN(s.Steps))
	case err := <-errs:
		t.Fatalf("unexpected stream error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("no summary received")
	}
}

func TestSubscribeWithoutConnection(t *testing.T) {
	c := New("tok", "ws://unused", "", []string{"daily_summaries"}, time.Second, time.Second).(*Client)
	assert.Error(t, c.Subscribe(context.Background()))
}
