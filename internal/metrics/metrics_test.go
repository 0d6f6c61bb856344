// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJobLifecycleCounters(t *testing.T) {
	before := testutil.ToFloat64(jobsTotal.WithLabelValues("tiktok", "failed"))
	inFlight := testutil.ToFloat64(jobsInFlight)

	JobStarted()
	assert.Equal(t, inFlight+1, testutil.ToFloat64(jobsInFlight))
	JobFinished("tiktok", "failed")

	assert.Equal(t, inFlight, testutil.ToFloat64(jobsInFlight))
	assert.Equal(t, before+1, testutil.ToFloat64(jobsTotal.WithLabelValues("tiktok", "failed")))
}

func TestEmptyPlatformLabel(t *testing.T) {
	before := testutil.ToFloat64(resolverRequestsTotal.WithLabelValues("unknown", "error"))
	IncResolver("", "error")
	assert.Equal(t, before+1, testutil.ToFloat64(resolverRequestsTotal.WithLabelValues("unknown", "error")))
}

func TestRecordSweep(t *testing.T) {
	removed := testutil.ToFloat64(sweptFilesTotal.WithLabelValues("removed"))
	at := time.Unix(1_700_000_000, 0)

	RecordSweep(3, 1, 0, 7, 20*time.Millisecond, at)

	assert.Equal(t, removed+3, testutil.ToFloat64(sweptFilesTotal.WithLabelValues("removed")))
	assert.Equal(t, float64(7), testutil.ToFloat64(storedFiles))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(lastSweepTimestamp))
}
