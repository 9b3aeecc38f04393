package bridge

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/ansultad/internal/ansulta"
)

// SourceBridge tags commands issued through the Hue API.
const SourceBridge = "bridge"

// Username handed out by POST /api. Any username is accepted afterwards.
const Username = "api"

// Options configures the emulated bridge.
type Options struct {
	Name         string
	AdvertiseIP  string
	Port         int
	RateLimitRPS float64
	RateBurst    int
}

// Server serves the Hue v1 API subset for the lights in a Table.
type Server struct {
	opts       Options
	table      *Table
	limiter    *rate.Limiter
	id         uuid.UUID
	addr       string
	httpServer *http.Server
}

// NewServer creates a bridge server listening on host:opts.Port.
func NewServer(host string, opts Options, table *Table) *Server {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = int(opts.RateLimitRPS) + 1
	}
	return &Server{
		opts:    opts,
		table:   table,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateBurst),
		// stable across restarts so clients keep their pairing
		id:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("ansultad/"+opts.Name)),
		addr: fmt.Sprintf("%s:%d", host, opts.Port),
	}
}

// BridgeID returns the 16 hex digit bridge id.
func (s *Server) BridgeID() string {
	return strings.ToUpper(strings.ReplaceAll(s.id.String(), "-", "")[:16])
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /description.xml", s.handleDescription)

	api := http.NewServeMux()
	api.HandleFunc("POST /api", s.handleCreateUser)
	api.HandleFunc("GET /api/{user}", s.handleFullState)
	api.HandleFunc("GET /api/{user}/config", s.handleConfig)
	api.HandleFunc("GET /api/{user}/lights", s.handleLights)
	api.HandleFunc("GET /api/{user}/lights/{id}", s.handleLight)
	api.HandleFunc("PUT /api/{user}/lights/{id}/state", s.handleSetState)
	api.HandleFunc("POST /api/{user}/lights/{id}/state", s.handleSetState)
	api.HandleFunc("/api/", s.handleUnknown)

	limited := s.rateLimit(api)
	mux.Handle("/api", limited)
	mux.Handle("/api/", limited)

	return mux
}

// Run starts the bridge server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Str("bridge_id", s.BridgeID()).Msg("Starting Hue bridge emulation")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Bridge server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			log.Warn().Str("path", r.URL.Path).Msg("Bridge request rate limited")
			writeJSON(w, http.StatusServiceUnavailable, hueError(errInternal, r.URL.Path, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("remote", r.RemoteAddr).Msg("Bridge client registered")
	writeJSON(w, http.StatusOK, []successItem{{Success: map[string]any{"username": Username}}})
}

func (s *Server) handleFullState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"lights": s.lights(),
		"config": s.config(),
		"groups": map[string]any{},
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config())
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lights())
}

func (s *Server) handleLight(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, hueLight(id, e))
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	prefix := fmt.Sprintf("/lights/%d/state", id)

	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, hueError(errBadJSON, prefix, "body contains invalid JSON"))
		return
	}
	if req.On == nil && req.Bri == nil {
		writeJSON(w, http.StatusOK, hueError(errBadParameter, prefix, "no supported parameter in body"))
		return
	}

	current := e.light.Status().State
	var briOff []errorItem
	if req.Bri != nil && !requestedOn(req, current) {
		briOff = hueError(errDeviceOff, prefix+"/bri", "parameter, bri, is not modifiable. Device is set to off.")
		if req.On == nil {
			writeJSON(w, http.StatusOK, briOff)
			return
		}
		req.Bri = nil
	}
	target, bri := resolveState(req, current, e.bri)

	if err := e.light.SetState(r.Context(), target, SourceBridge); err != nil {
		log.Error().Err(err).Int("light", id).Str("state", target.String()).Msg("Bridge command failed")
		desc := "transceiver error"
		if errors.Is(err, ansulta.ErrNoAddress) {
			desc = "fixture address not learned"
		}
		writeJSON(w, http.StatusOK, hueError(errInternal, prefix, "%s", desc))
		return
	}
	s.table.setBri(id, bri)

	log.Info().
		Int("light", id).
		Str("from", current.String()).
		Str("to", target.String()).
		Uint8("bri", bri).
		Msg("Bridge set light state")

	var resp []any
	if req.On != nil {
		resp = append(resp, successItem{Success: map[string]any{prefix + "/on": *req.On}})
	}
	if req.Bri != nil {
		resp = append(resp, successItem{Success: map[string]any{prefix + "/bri": bri}})
	}
	for _, item := range briOff {
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hueError(errNoMethod, r.URL.Path,
		"method, %s, not available for resource, %s", r.Method, r.URL.Path))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (int, entry, bool) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err == nil {
		if e, ok := s.table.get(id); ok {
			return id, e, true
		}
	}
	writeJSON(w, http.StatusOK, hueError(errNotFound, "/lights/"+raw, "resource, /lights/%s, not available", raw))
	return 0, entry{}, false
}

func (s *Server) lights() map[string]any {
	out := make(map[string]any)
	for _, id := range s.table.ids() {
		if e, ok := s.table.get(id); ok {
			out[strconv.Itoa(id)] = hueLight(id, e)
		}
	}
	return out
}

type bridgeConfig struct {
	Name             string `json:"name"`
	BridgeID         string `json:"bridgeid"`
	IPAddress        string `json:"ipaddress"`
	ModelID          string `json:"modelid"`
	APIVersion       string `json:"apiversion"`
	SwVersion        string `json:"swversion"`
	DatastoreVersion string `json:"datastoreversion"`
	LinkButton       bool   `json:"linkbutton"`
	UTC              string `json:"UTC"`
}

func (s *Server) config() bridgeConfig {
	return bridgeConfig{
		Name:             s.opts.Name,
		BridgeID:         s.BridgeID(),
		IPAddress:        s.opts.AdvertiseIP,
		ModelID:          "BSB002",
		APIVersion:       "1.24.0",
		SwVersion:        "1935144020",
		DatastoreVersion: "79",
		LinkButton:       true,
		UTC:              time.Now().UTC().Format("2006-01-02T15:04:05"),
	}
}

// description.xml, the UPnP document discovery clients fetch.
type upnpRoot struct {
	XMLName     xml.Name    `xml:"urn:schemas-upnp-org:device-1-0 root"`
	SpecVersion specVersion `xml:"specVersion"`
	URLBase     string      `xml:"URLBase"`
	Device      upnpDevice  `xml:"device"`
}

type specVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type upnpDevice struct {
	DeviceType       string `xml:"deviceType"`
	FriendlyName     string `xml:"friendlyName"`
	Manufacturer     string `xml:"manufacturer"`
	ManufacturerURL  string `xml:"manufacturerURL"`
	ModelDescription string `xml:"modelDescription"`
	ModelName        string `xml:"modelName"`
	ModelNumber      string `xml:"modelNumber"`
	SerialNumber     string `xml:"serialNumber"`
	UDN              string `xml:"UDN"`
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	host := s.opts.AdvertiseIP
	if host == "" {
		host = r.Host
	} else {
		host = fmt.Sprintf("%s:%d", host, s.opts.Port)
	}

	doc := upnpRoot{
		SpecVersion: specVersion{Major: 1, Minor: 0},
		URLBase:     "http://" + host + "/",
		Device: upnpDevice{
			DeviceType:       "urn:schemas-upnp-org:device:Basic:1",
			FriendlyName:     fmt.Sprintf("%s (%s)", s.opts.Name, host),
			Manufacturer:     "Royal Philips Electronics",
			ManufacturerURL:  "http://www.philips.com",
			ModelDescription: "Philips hue Personal Wireless Lighting",
			ModelName:        "Philips hue bridge 2015",
			ModelNumber:      "BSB002",
			SerialNumber:     s.BridgeID(),
			UDN:              "uuid:" + s.id.String(),
		},
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		log.Error().Err(err).Msg("Failed to write description.xml")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write bridge response")
	}
}
