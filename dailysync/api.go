// http layer for triggering and inspecting the daily sync
package dailysync

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter exposes the runner over HTTP. A triggered run is detached from the
// request so a dropped connection does not abort it halfway.
func NewRouter(runner *Runner, runTimeout time.Duration) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", homeLink).Methods(http.MethodGet)
	router.HandleFunc("/api/sync/run", runSync(runner, runTimeout)).Methods(http.MethodPost)
	router.HandleFunc("/api/growth/latest", latestGrowth(runner)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(runner.Metrics().Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

func homeLink(writer http.ResponseWriter, request *http.Request) {
	returnResultAsJson(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func runSync(runner *Runner, timeout time.Duration) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := runner.Run(ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			returnErrorAsJson(writer, http.StatusConflict, err.Error())
		case err != nil && result == nil:
			returnErrorAsJson(writer, http.StatusBadGateway, err.Error())
		case err != nil:
			// tables were written, only the export failed
			returnResultAsJson(writer, http.StatusMultiStatus, map[string]interface{}{
				"result": result,
				"error":  err.Error(),
			})
		default:
			returnResultAsJson(writer, http.StatusOK, result)
		}
	}
}

func latestGrowth(runner *Runner) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		rec, err := runner.Store().LastGrowthRecord(request.Context())
		if err != nil {
			returnErrorAsJson(writer, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			returnErrorAsJson(writer, http.StatusNotFound, "no growth rows yet")
			return
		}
		returnResultAsJson(writer, http.StatusOK, rec)
	}
}

func returnErrorAsJson(writer http.ResponseWriter, code int, message string) {
	returnResultAsJson(writer, code, map[string]string{"error": message})
}

func returnResultAsJson(writer http.ResponseWriter, code int, data interface{}) {
	response, _ := json.Marshal(data)
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(code)
	writer.Write(response)
}
