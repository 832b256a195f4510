package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the status routes.
func NewRouter(s *Server) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	router.Methods("GET").Path("/ping").HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Write([]byte("pong"))
	})
	router.Methods("GET").Path("/v1/status").HandlerFunc(s.GetStatus)
	router.Methods("GET").Path("/v1/connections").HandlerFunc(s.ListConnections)

	return router
}
