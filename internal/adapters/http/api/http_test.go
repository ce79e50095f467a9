package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type stubStatus struct {
	status map[string]any
}

func (s stubStatus) Status() map[string]any { return s.status }

func serve(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer(t *testing.T) {
	Convey("Given an ops server over a running cycle", t, func() {
		mux := http.NewServeMux()
		NewServer(stubStatus{status: map[string]any{"cycle_id": "c1", "phase": "crawling"}}).Register(mux)

		Convey("When checking health", func() {
			rec := serve(mux, http.MethodGet, "/healthz")

			Convey("Then it reports ok", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When asking for status", func() {
			rec := serve(mux, http.MethodGet, "/status")

			Convey("Then it returns the provider snapshot", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["cycle_id"], ShouldEqual, "c1")
				So(body["phase"], ShouldEqual, "crawling")
			})
		})

		Convey("When posting to a read-only endpoint", func() {
			rec := serve(mux, http.MethodPost, "/status")

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When scraping metrics", func() {
			serve(mux, http.MethodGet, "/healthz")
			rec := serve(mux, http.MethodGet, "/metrics")

			Convey("Then served requests are counted", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "rankcrawl_http_requests_total")
			})
		})
	})
}

func TestGetErrorType(t *testing.T) {
	Convey("Given response status codes", t, func() {
		So(getErrorType(http.StatusInternalServerError), ShouldEqual, "server_error")
		So(getErrorType(http.StatusNotFound), ShouldEqual, "not_found")
		So(getErrorType(http.StatusBadRequest), ShouldEqual, "client_error")
		So(getErrorType(http.StatusOK), ShouldEqual, "unknown")
	})
}
