package app

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gesture_lock/internal/acquisition"
	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/match"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
	"github.com/relabs-tech/gesture_lock/internal/storage"
	"github.com/relabs-tech/gesture_lock/internal/ui"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu       sync.Mutex
	pubs     []published
	handlers map[string]mqtt.MessageHandler
	pubErr   error
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pubs = append(c.pubs, published{topic, retained, payload.([]byte)})
	return doneToken{c.pubErr}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = map[string]mqtt.MessageHandler{}
	}
	c.handlers[topic] = cb
	return doneToken{}
}

func (c *fakeClient) deliver(topic, payload string) {
	c.mu.Lock()
	cb := c.handlers[topic]
	c.mu.Unlock()
	cb(nil, fakeMessage{topic: topic, payload: []byte(payload)})
}

type raised struct {
	mu   sync.Mutex
	reqs []events.Request
	srcs []string
}

func (r *raised) raise(req events.Request, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	r.srcs = append(r.srcs, source)
}

func (r *raised) requests() []events.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Request(nil), r.reqs...)
}

func TestBridgeCommands(t *testing.T) {
	client := &fakeClient{}
	var got raised
	b := NewBridge(client, "lock/status", "lock/result", got.raise, nil)
	require.NoError(t, b.Subscribe("lock/command"))

	client.deliver("lock/command", "unlock")
	client.deliver("lock/command", ` {"request":"enroll"} `)
	client.deliver("lock/command", "RECORD\n")
	client.deliver("lock/command", "open sesame")
	client.deliver("lock/command", `{"request":`)

	assert.Equal(t, []events.Request{events.RequestAuthenticate, events.RequestEnroll, events.RequestEnroll}, got.requests())
	assert.Equal(t, "mqtt", got.srcs[0])
}

func TestBridgePublishesStatusAndResults(t *testing.T) {
	client := &fakeClient{}
	b := NewBridge(client, "lock/status", "lock/result", (&raised{}).raise, nil)

	b.ShowStatus(ui.Status{Text: ui.TextLocked, Lamp: ui.LampLocked})
	b.SessionDone(acquisition.Session{
		ID:      "abc",
		Kind:    "authenticate",
		Samples: 12,
		Outcome: acquisition.OutcomeRejected,
		Match:   &match.Result{Strategy: "correlation", Axes: [3]float64{0.8, math.NaN(), 0.1}},
	})

	require.Len(t, client.pubs, 2)
	status := client.pubs[0]
	assert.Equal(t, "lock/status", status.topic)
	assert.True(t, status.retained)
	assert.Contains(t, string(status.payload), `"lamp":"locked"`)

	result := client.pubs[1]
	assert.Equal(t, "lock/result", result.topic)
	assert.False(t, result.retained)
	line, err := formatResult(result.payload)
	require.NoError(t, err)
	assert.Contains(t, line, "rejected")
	assert.Contains(t, line, "r=(0.800, NaN, 0.100)")
	assert.Contains(t, line, "id=abc")
}

func TestBridgeCountsPublishErrors(t *testing.T) {
	client := &fakeClient{pubErr: errors.New("not connected")}
	failures := 0
	b := NewBridge(client, "s", "r", (&raised{}).raise, func() { failures++ })
	b.ShowStatus(ui.Status{Text: "x"})
	assert.Equal(t, 1, failures)
}

func TestFormatStatus(t *testing.T) {
	payload, err := json.Marshal(ui.Status{Text: ui.TextUnlockSuccess, Lamp: ui.LampUnlocked})
	require.NoError(t, err)
	line, err := formatStatus(payload)
	require.NoError(t, err)
	assert.Contains(t, line, ui.TextUnlockSuccess)
	assert.Contains(t, line, "lamp=unlocked")

	_, err = formatStatus([]byte("{"))
	assert.Error(t, err)
}

func newTestWeb(t *testing.T, sessions SessionLog) (*WebServer, *ui.Board, *raised) {
	t.Helper()
	board := ui.NewBoard(ui.TextLocked, ui.LampLocked)
	got := &raised{}
	s := NewWebServer(WebDeps{
		Board:    board,
		State:    func() acquisition.State { return acquisition.Recording },
		Enrolled: func() bool { return true },
		Raise:    got.raise,
		Sessions: sessions,
	})
	return s, board, got
}

func TestWebStatusAndRequests(t *testing.T) {
	s, _, got := newTestWeb(t, nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, ui.TextLocked, st.Status.Text)
	assert.Equal(t, ui.LampLocked, st.Status.Lamp)
	assert.Equal(t, "recording", st.State)
	assert.True(t, st.Enrolled)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/request/unlock", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/request/reset", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/request/unlock", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, []events.Request{events.RequestAuthenticate}, got.requests())
	assert.Equal(t, []string{"web"}, got.srcs)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSessionsFromStore(t *testing.T) {
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	obs := sessionRecorder(db, match.StrategyDTW)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obs.SessionDone(acquisition.Session{ID: "one", Kind: "enroll", Samples: 40, Outcome: acquisition.OutcomeSaved, StartedAt: start})
	obs.SessionDone(acquisition.Session{
		ID: "two", Kind: "authenticate", Samples: 0, Outcome: acquisition.OutcomeRejected,
		Match:     &match.Result{Axes: [3]float64{math.NaN(), math.NaN(), math.NaN()}, Distance: math.Inf(1)},
		StartedAt: start.Add(time.Minute),
	})

	s, _, _ := newTestWeb(t, db)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []storage.SessionRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "two", recs[0].ID)
	assert.Equal(t, match.StrategyDTW, recs[0].Strategy)
	assert.Zero(t, recs[0].Distance)
	assert.Empty(t, recs[1].Strategy)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketPushesAndAccepts(t *testing.T) {
	s, board, got := newTestWeb(t, nil)
	board.Attach(s)
	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev WSEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "status", ev.Type)
	assert.Equal(t, ui.TextLocked, ev.Status.Text)

	// the hub registers the client before the first event is queued
	board.Set(ui.TextUnlockSuccess, ui.LampUnlocked)
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, ui.TextUnlockSuccess, ev.Status.Text)

	s.SessionDone(acquisition.Session{ID: "s1", Kind: "authenticate", Outcome: acquisition.OutcomeUnlocked})
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "session", ev.Type)
	assert.Equal(t, "s1", ev.Session.ID)

	require.NoError(t, conn.WriteJSON(WSMessage{Action: "bogus"}))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)

	require.NoError(t, conn.WriteJSON(WSMessage{Action: "enroll"}))
	require.Eventually(t, func() bool { return len(got.requests()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, events.RequestEnroll, got.requests()[0])
}

func TestRegisterDebugHandle(t *testing.T) {
	dev := sensors.NewMockGyro(sensors.Wave)
	h := NewRegisterDebugHandler(dev)

	resp := h.Handle(RegisterCmd{Action: "read", Address: "0x0F"})
	assert.Equal(t, "register_data", resp.Type)
	assert.Equal(t, "0xD4", resp.Value)

	resp = h.Handle(RegisterCmd{Action: "write", Address: "0x20", Value: "0x6F"})
	assert.Equal(t, "write successful", resp.Message)
	v, _ := dev.ReadRegister(0x20)
	assert.Equal(t, byte(0x6F), v)

	resp = h.Handle(RegisterCmd{Action: "write", Address: "0x0F", Value: "0x00"})
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Message, "not writable")

	resp = h.Handle(RegisterCmd{Action: "read", Address: "15"})
	assert.Equal(t, "error", resp.Type)

	resp = h.Handle(RegisterCmd{Action: "read_all"})
	assert.Equal(t, "0xD4", resp.Registers["0x0F"])
	assert.Equal(t, "0x6F", resp.Registers["0x20"])

	resp = h.Handle(RegisterCmd{Action: "export_config"})
	require.NotNil(t, resp.Config)
	assert.Equal(t, "l3gd20", resp.Config.Device)
	assert.True(t, strings.HasSuffix(resp.Filename, "_registers.json"))

	assert.Equal(t, "register_map", h.Handle(RegisterCmd{Action: "get_map"}).Type)
	assert.Equal(t, "error", h.Handle(RegisterCmd{Action: "reboot"}).Type)
}

func TestHandleGyroData(t *testing.T) {
	dev := sensors.NewMockGyro(sensors.Wave)
	dev.Noise = 0
	require.NoError(t, dev.WriteRegister(0x20, 0x0F))

	rec := httptest.NewRecorder()
	HandleGyroData(dev)(rec, httptest.NewRequest(http.MethodGet, "/api/gyro", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"x":24,"y":-18,"z":9}`, rec.Body.String())
}
