package util

import (
	"io"
	"net/http"
	"reflect"
	"runtime"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
)

// UUID returns a random identifier string.
func UUID() string {
	return uuid.New().String()
}

// GetFunctionName resolves a function value to its symbol name.
func GetFunctionName(f interface{}) string {
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}

type filteredLoggingHandler struct {
	filteredPaths  map[string]struct{}
	handler        http.Handler
	loggingHandler http.Handler
}

// FilteredLoggingHandler access-logs every request except GETs on the
// listed paths, keeping health-check chatter out of the logs.
func FilteredLoggingHandler(filteredPaths map[string]struct{}, writer io.Writer, router http.Handler) http.Handler {
	return filteredLoggingHandler{
		filteredPaths:  filteredPaths,
		handler:        router,
		loggingHandler: handlers.LoggingHandler(writer, router),
	}
}

func (h filteredLoggingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case "GET":
		if _, exists := h.filteredPaths[req.URL.Path]; exists {
			h.handler.ServeHTTP(w, req)
			return
		}
	}
	h.loggingHandler.ServeHTTP(w, req)
}
