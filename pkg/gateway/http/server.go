package http

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	lwm2m "github.com/samsamfire/golwm2m"
	"github.com/samsamfire/golwm2m/pkg/dm"
	"github.com/samsamfire/golwm2m/pkg/observe"
)

// localSSID is the pseudo server-id this gateway reads and writes as,
// distinct from any real LwM2M Server Object instance id, mirroring the
// teacher gateway's defaultNodeId: a fixed identity the HTTP caller
// always acts as, rather than one selected per-request.
const localSSID uint16 = 0xFFFE

// Server is the HTTP+JSON front end over a Client's data model (SPEC_FULL
// §4.11). Like the teacher's GatewayServer, it owns a ServeMux and
// registers one handler per route; unlike the teacher's CiA 309-5 command
// grammar, routes here are plain REST verbs over LwM2M resource paths.
type Server struct {
	client   *lwm2m.Client
	serveMux *http.ServeMux
}

func NewServer(client *lwm2m.Client) *Server {
	s := &Server{client: client, serveMux: http.NewServeMux()}
	s.serveMux.HandleFunc("/read", s.handleRead)
	s.serveMux.HandleFunc("/write", s.handleWrite)
	s.serveMux.HandleFunc("/execute", s.handleExecute)
	s.serveMux.HandleFunc("/discover", s.handleDiscover)
	s.serveMux.HandleFunc("/observe", s.handleObserve)
	return s
}

// ListenAndServe blocks, serving the gateway's routes on addr, mirroring
// the teacher gateway's ListenAndServe.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.serveMux)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	path, err := parsePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx := &dm.OpContext{SSID: localSSID}
	leaves, err := s.client.Registry.Read(ctx, path)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := ReadResponse{Response: Response{OK: true}}
	for _, l := range leaves {
		out.Leaves = append(out.Leaves, leafToWire(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	leaves := make([]dm.Leaf, 0, len(req.Leaves))
	for _, in := range req.Leaves {
		leaf, err := wireToLeaf(in)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		leaves = append(leaves, leaf)
	}
	replace := r.URL.Query().Get("mode") != "update"
	ctx := &dm.OpContext{SSID: localSSID}
	if err := s.client.Registry.Write(ctx, leaves, replace); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, Response{OK: true})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	path, err := parsePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req ExecuteRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means no args
	}
	ctx := &dm.OpContext{SSID: localSSID}
	if err := s.client.Registry.Execute(ctx, path, []byte(req.Args)); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, Response{OK: true})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	path, err := parsePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	listing, err := s.client.Registry.Discover(path)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, DiscoverResponse{Response: Response{OK: true}, LinkFormat: listing})
}

// handleObserve registers a local (HTTP-caller-owned) Observation; polling
// its current value happens through repeated GET /read, so this gateway
// does not hold an HTTP connection open per RFC 7641 — it only tracks the
// subscription for the engine's pmin/pmax bookkeeping.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	path, err := parsePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if r.Method == http.MethodDelete {
		s.client.Observe.Stop("http-gateway", []byte(path.String()))
		writeJSON(w, http.StatusOK, ObserveResponse{Response: Response{OK: true}, Path: path.String()})
		return
	}
	attrs := s.client.Attrs.Resolve(path)
	obs := observe.NewObservation(path, "http-gateway", []byte(path.String()), localSSID, attrs)
	s.client.Observe.Start(obs)
	writeJSON(w, http.StatusCreated, ObserveResponse{Response: Response{OK: true}, Path: path.String()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("[GATEWAY][HTTP] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Response{OK: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch err {
	case dm.ErrNotFound:
		return http.StatusNotFound
	case dm.ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case dm.ErrBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
