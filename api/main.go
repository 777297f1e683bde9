package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/tft-perf/traffic-flow-tests/controller"
)

// TFTAPI serves the observability surface of a run in flight: live suite
// progress and the Prometheus metrics.
type TFTAPI struct {
	ctr *controller.Controller
}

func NewAPIServer(ctr *controller.Controller) *TFTAPI {
	return &TFTAPI{
		ctr: ctr,
	}
}

type JSONMessage struct {
	Message string `json:"message"`
}

func (s *TFTAPI) jsonise(w http.ResponseWriter, status int, content interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(content)
}

func (s *TFTAPI) statusHandler(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.jsonise(w, http.StatusOK, s.ctr.Status())
}

func (s *TFTAPI) healthHandler(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.jsonise(w, http.StatusOK, &JSONMessage{Message: "ok"})
}

type Route struct {
	Name        string
	Method      string
	Path        string
	HandlerFunc httprouter.Handle
}

type Routes []*Route

func (s *TFTAPI) InitRoutes() Routes {
	return Routes{
		&Route{"status", "GET", "/api/status", s.statusHandler},
		&Route{"health", "GET", "/api/health", s.healthHandler},
	}
}

// Router wires the API routes and the Prometheus endpoint.
func (s *TFTAPI) Router() *httprouter.Router {
	r := httprouter.New()
	for _, route := range s.InitRoutes() {
		r.Handle(route.Method, route.Path, route.HandlerFunc)
	}
	r.Handler("GET", "/metrics", promhttp.Handler())
	return r
}

// Serve blocks on the listen address. It is started in the background
// alongside a run so progress can be scraped.
func (s *TFTAPI) Serve(addr string) {
	log.Infof("status API listening on %s", addr)
	log.Error(http.ListenAndServe(addr, s.Router()))
}
