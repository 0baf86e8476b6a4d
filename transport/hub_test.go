package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Subscriber goroutines can log after a test returns, so the hub gets a no-op logger.
func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	hub := NewHub(zap.NewNop().Sugar())
	srv := httptest.NewServer(NewRouter(hub, func() interface{} {
		return map[string]int{"ticks": 3}
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func subscribe(t *testing.T, hub *Hub, srv *httptest.Server, topic string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/topics/" + topic
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.Subscribers(topic) == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestPublishReport(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := subscribe(t, hub, srv, TopicDetections)

	report := `[{"box_location":[0.0,0.0,0.0,0.0],"otype":"nothing","prob":1.0,"dist":0.0}]`
	require.NoError(t, hub.PublishReport([]byte(report)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	require.Equal(t, report, string(data))
}

func TestPublishPreview(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := subscribe(t, hub, srv, TopicPreview)

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	img := CompressedImage{
		Header: Header{Stamp: stamp, FrameID: "7"},
		Format: FormatJPEG,
		Data:   []byte{0xff, 0xd8, 0xff, 0xd9},
	}
	require.NoError(t, hub.PublishPreview(img))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	got, err := UnmarshalCompressedImage(data)
	require.NoError(t, err)
	require.Equal(t, "jpeg", got.Format)
	require.Equal(t, "7", got.Header.FrameID)
	require.True(t, stamp.Equal(got.Header.Stamp))
	require.Equal(t, img.Data, got.Data)
}

func TestTopicsAreIsolated(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := subscribe(t, hub, srv, TopicDetections)

	require.NoError(t, hub.PublishBinary(TopicPreview, []byte{1}))
	require.NoError(t, hub.PublishReport([]byte("[]")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}

func TestLatest(t *testing.T) {
	hub, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/topics/detections/latest")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, hub.PublishReport([]byte(`[1]`)))
	require.NoError(t, hub.PublishReport([]byte(`[2]`)))

	resp, err = http.Get(srv.URL + "/topics/detections/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `[2]`, string(body))

	require.NoError(t, hub.PublishBinary(TopicPreview, []byte{9}))
	latest, ok := hub.Latest(TopicPreview)
	require.True(t, ok)
	require.Equal(t, []byte{9}, latest)

	resp2, err := http.Get(srv.URL + "/topics/image/compressed/latest")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	require.Equal(t, "application/msgpack", resp2.Header.Get("Content-Type"))
}

func TestMetricsAndHealth(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"ticks":3}`, string(body))

	resp2, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestPublishAfterClose(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	hub.Close()
	require.ErrorIs(t, hub.PublishReport([]byte("[]")), ErrClosed)
}
