package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/amimof/huego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/ansultad/internal/ansulta"
)

type fakeLight struct {
	mu      sync.Mutex
	status  ansulta.Status
	sent    []ansulta.LightState
	sources []string
	err     error
}

func (f *fakeLight) SetState(_ context.Context, state ansulta.LightState, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, state)
	f.sources = append(f.sources, source)
	f.status.State = state
	return nil
}

func (f *fakeLight) Status() ansulta.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func newTestServer(t *testing.T, light *fakeLight) (*Server, http.Handler) {
	t.Helper()
	table := NewTable()
	id, err := table.Add("Kitchen", "00:17:88:01:00:2a:7f:01-0b", light)
	require.NoError(t, err)
	require.Equal(t, 1, id)

	srv := NewServer("127.0.0.1", Options{Name: "ansultad", AdvertiseIP: "192.168.1.20", Port: 80, RateLimitRPS: 1000, RateBurst: 1000}, table)
	return srv, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func ptrBool(v bool) *bool  { return &v }
func ptrBri(v uint8) *uint8 { return &v }

func TestResolveState(t *testing.T) {
	tests := []struct {
		name    string
		req     stateRequest
		current ansulta.LightState
		lastBri uint8
		want    ansulta.LightState
		wantBri uint8
	}{
		{"off", stateRequest{On: ptrBool(false)}, ansulta.StateDim100, 254, ansulta.StateOff, 254},
		{"on from off is full", stateRequest{On: ptrBool(true), Bri: ptrBri(60)}, ansulta.StateOff, 254, ansulta.StateDim100, 60},
		{"dim while on", stateRequest{On: ptrBool(true), Bri: ptrBri(60)}, ansulta.StateDim100, 254, ansulta.StateDim50, 60},
		{"bri alone keeps on", stateRequest{Bri: ptrBri(100)}, ansulta.StateDim100, 254, ansulta.StateDim50, 100},
		{"bri alone while off stays off", stateRequest{Bri: ptrBri(200)}, ansulta.StateOff, 254, ansulta.StateOff, 254},
		{"bri one is full", stateRequest{On: ptrBool(true), Bri: ptrBri(1)}, ansulta.StateDim50, 127, ansulta.StateDim100, 254},
		{"bri zero is full", stateRequest{On: ptrBool(true), Bri: ptrBri(0)}, ansulta.StateDim50, 127, ansulta.StateDim100, 254},
		{"above half is full", stateRequest{Bri: ptrBri(128)}, ansulta.StateDim50, 127, ansulta.StateDim100, 128},
		{"on reuses last bri", stateRequest{On: ptrBool(true)}, ansulta.StateDim50, 90, ansulta.StateDim50, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bri := resolveState(tt.req, tt.current, tt.lastBri)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantBri, bri)
		})
	}
}

func TestCreateUser(t *testing.T) {
	_, h := newTestServer(t, &fakeLight{})

	rec := do(t, h, http.MethodPost, "/api", `{"devicetype":"echo"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"success":{"username":"api"}}]`, rec.Body.String())
}

func TestGetLights(t *testing.T) {
	light := &fakeLight{status: ansulta.Status{Learned: true, State: ansulta.StateDim50}}
	_, h := newTestServer(t, light)

	rec := do(t, h, http.MethodGet, "/api/anyone/lights", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var lights map[string]huego.Light
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lights))
	require.Contains(t, lights, "1")
	got := lights["1"]
	assert.Equal(t, "Kitchen", got.Name)
	require.NotNil(t, got.State)
	assert.True(t, got.State.On)
	assert.True(t, got.State.Reachable)
	assert.Equal(t, briHalf, got.State.Bri)
}

func TestGetUnknownLight(t *testing.T) {
	_, h := newTestServer(t, &fakeLight{})

	for _, path := range []string{"/api/u/lights/7", "/api/u/lights/abc"} {
		rec := do(t, h, http.MethodGet, path, "")
		var errs []errorItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
		require.Len(t, errs, 1)
		assert.Equal(t, errNotFound, errs[0].Error.Type)
	}
}

func TestSetState(t *testing.T) {
	light := &fakeLight{status: ansulta.Status{Learned: true, State: ansulta.StateOff}}
	_, h := newTestServer(t, light)

	rec := do(t, h, http.MethodPut, "/api/u/lights/1/state", `{"on":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"success":{"/lights/1/state/on":true}}]`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/u/lights/1/state", `{"bri":64}`)
	assert.JSONEq(t, `[{"success":{"/lights/1/state/bri":64}}]`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/u/lights/1/state", `{"on":false}`)
	assert.JSONEq(t, `[{"success":{"/lights/1/state/on":false}}]`, rec.Body.String())

	assert.Equal(t, []ansulta.LightState{ansulta.StateDim100, ansulta.StateDim50, ansulta.StateOff}, light.sent)
	assert.Equal(t, []string{SourceBridge, SourceBridge, SourceBridge}, light.sources)
}

func TestBriWhileOff(t *testing.T) {
	light := &fakeLight{status: ansulta.Status{Learned: true, State: ansulta.StateOff}}
	_, h := newTestServer(t, light)

	rec := do(t, h, http.MethodPut, "/api/u/lights/1/state", `{"bri":200}`)
	assert.JSONEq(t, `[{"error":{"type":201,"address":"/lights/1/state/bri","description":"parameter, bri, is not modifiable. Device is set to off."}}]`, rec.Body.String())
	assert.Empty(t, light.sent)

	rec = do(t, h, http.MethodPut, "/api/u/lights/1/state", `{"on":false,"bri":200}`)
	assert.JSONEq(t, `[
		{"success":{"/lights/1/state/on":false}},
		{"error":{"type":201,"address":"/lights/1/state/bri","description":"parameter, bri, is not modifiable. Device is set to off."}}
	]`, rec.Body.String())
	assert.Equal(t, []ansulta.LightState{ansulta.StateOff}, light.sent)

	// the rejected brightness is not remembered
	rec = do(t, h, http.MethodPut, "/api/u/lights/1/state", `{"on":true}`)
	assert.JSONEq(t, `[{"success":{"/lights/1/state/on":true}}]`, rec.Body.String())
	rec = do(t, h, http.MethodGet, "/api/u/lights/1", "")
	var got huego.Light
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, briFull, got.State.Bri)
}

func TestSetStateErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		body     string
		wantType int
		wantDesc string
	}{
		{"bad json", nil, `{"on":`, errBadJSON, "body contains invalid JSON"},
		{"no parameters", nil, `{"hue":1000}`, errBadParameter, "no supported parameter in body"},
		{"no address", ansulta.ErrNoAddress, `{"on":true}`, errInternal, "fixture address not learned"},
		{"radio failure", errors.New("cc2500: not responding"), `{"on":true}`, errInternal, "transceiver error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, &fakeLight{err: tt.err})

			rec := do(t, h, http.MethodPut, "/api/u/lights/1/state", tt.body)
			var errs []errorItem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantType, errs[0].Error.Type)
			assert.Equal(t, tt.wantDesc, errs[0].Error.Description)
			assert.Equal(t, "/lights/1/state", errs[0].Error.Address)
		})
	}
}

func TestUnknownResource(t *testing.T) {
	_, h := newTestServer(t, &fakeLight{})

	rec := do(t, h, http.MethodDelete, "/api/u/groups/0", "")
	var errs []errorItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, errNoMethod, errs[0].Error.Type)
}

func TestConfigAndDescription(t *testing.T) {
	srv, h := newTestServer(t, &fakeLight{})

	rec := do(t, h, http.MethodGet, "/api/u/config", "")
	var cfg bridgeConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "ansultad", cfg.Name)
	assert.Equal(t, srv.BridgeID(), cfg.BridgeID)
	assert.Len(t, cfg.BridgeID, 16)

	rec = do(t, h, http.MethodGet, "/description.xml", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<URLBase>http://192.168.1.20:80/</URLBase>")
	assert.Contains(t, rec.Body.String(), "<serialNumber>"+srv.BridgeID()+"</serialNumber>")
}

func TestBridgeIDIsStable(t *testing.T) {
	a := NewServer("", Options{Name: "ansultad"}, NewTable())
	b := NewServer("", Options{Name: "ansultad"}, NewTable())
	c := NewServer("", Options{Name: "other"}, NewTable())

	assert.Equal(t, a.BridgeID(), b.BridgeID())
	assert.NotEqual(t, a.BridgeID(), c.BridgeID())
}

func TestRateLimit(t *testing.T) {
	table := NewTable()
	_, err := table.Add("Kitchen", "id", &fakeLight{})
	require.NoError(t, err)
	srv := NewServer("", Options{Name: "ansultad", RateLimitRPS: 0.001, RateBurst: 1}, table)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/u/lights", "").Code)

	rec := do(t, h, http.MethodGet, "/api/u/lights", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var errs []errorItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	assert.Equal(t, errInternal, errs[0].Error.Type)

	// description.xml is not limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/description.xml", "").Code)
}

func TestTable(t *testing.T) {
	table := NewTable()
	for i := 0; i < MaxLights; i++ {
		id, err := table.Add("l", "u", &fakeLight{})
		require.NoError(t, err)
		assert.Equal(t, i+1, id)
	}
	_, err := table.Add("l", "u", &fakeLight{})
	assert.ErrorIs(t, err, ErrTableFull)

	table.Remove(3)
	table.Remove(99)
	id, err := table.Add("l", "u", &fakeLight{})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.Len(t, table.ids(), MaxLights)
}
