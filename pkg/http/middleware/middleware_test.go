package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestId(t *testing.T) {
	var seen string

	h := WithRequestId(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIdHeader)
	}), func() string { return "generated" })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "generated", w.Header().Get(requestIdHeader))
	assert.Equal(t, "", seen)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(requestIdHeader, "given")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "given", w.Header().Get(requestIdHeader))
}

func TestDefaultRequestIdProvider(t *testing.T) {
	a, b := DefaultRequestIdProvider(), DefaultRequestIdProvider()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestWithRequestLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := WithRequestId(WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	}), logger), func() string { return "req-1" })

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/recoveries", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusServiceUnavailable, entry.Data["status"])
	assert.Equal(t, 4, entry.Data["content_length"])
	assert.Equal(t, "req-1", entry.Data["request_id"])
}
