package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProber_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober := NewHTTPProber()
	sample := prober.Probe(context.Background(), srv.URL, time.Second)

	assert.Equal(t, Healthy, sample.Status)
	assert.Equal(t, http.StatusOK, sample.StatusCode)
	assert.NoError(t, sample.Err)
}

func TestHTTPProber_Degraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober := NewHTTPProber()
	sample := prober.Probe(context.Background(), srv.URL, time.Second)

	assert.Equal(t, Degraded, sample.Status)
	assert.Equal(t, http.StatusInternalServerError, sample.StatusCode)
}

func TestHTTPProber_UnreachableOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober := NewHTTPProber()
	sample := prober.Probe(context.Background(), srv.URL, time.Millisecond)

	assert.Equal(t, Unreachable, sample.Status)
	assert.Error(t, sample.Err)
}

func TestHTTPProber_UnreachableOnBadURL(t *testing.T) {
	prober := NewHTTPProber()
	sample := prober.Probe(context.Background(), "http://127.0.0.1:1", 100*time.Millisecond)

	assert.Equal(t, Unreachable, sample.Status)
	assert.Error(t, sample.Err)
}

func TestHTTPProber_DegradedOnUnhealthyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"healthy": false}`))
	}))
	defer srv.Close()

	prober := NewHTTPProber()
	sample := prober.Probe(context.Background(), srv.URL, time.Second)

	assert.Equal(t, Degraded, sample.Status)
	assert.Equal(t, http.StatusOK, sample.StatusCode)
}

func TestHTTPProber_HealthyOnEmptyOrAbsentBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"other_field": 1}`))
	}))
	defer srv.Close()

	prober := NewHTTPProber()
	sample := prober.Probe(context.Background(), srv.URL, time.Second)

	assert.Equal(t, Healthy, sample.Status)
}

func TestHTTPProber_InvalidResponseOnUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	prober := NewHTTPProber()
	sample := prober.Probe(context.Background(), srv.URL, time.Second)

	assert.Equal(t, InvalidResponse, sample.Status)
}

func TestHTTPProber_EscalatesToUnreachableAfterThreeConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober := NewHTTPProber()

	first := prober.Probe(context.Background(), srv.URL, time.Second)
	assert.Equal(t, Degraded, first.Status)

	second := prober.Probe(context.Background(), srv.URL, time.Second)
	assert.Equal(t, Degraded, second.Status)

	third := prober.Probe(context.Background(), srv.URL, time.Second)
	assert.Equal(t, Unreachable, third.Status)
}

func TestHTTPProber_SuccessResetsConsecutiveFailureCount(t *testing.T) {
	failing := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober := NewHTTPProber()
	prober.Probe(context.Background(), srv.URL, time.Second)
	prober.Probe(context.Background(), srv.URL, time.Second)

	failing = false
	healthy := prober.Probe(context.Background(), srv.URL, time.Second)
	assert.Equal(t, Healthy, healthy.Status)

	failing = true
	afterReset := prober.Probe(context.Background(), srv.URL, time.Second)
	assert.Equal(t, Degraded, afterReset.Status)
}
