package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "miload_requests_total",
		Help: "Requests issued, by outcome",
	}, []string{"status"})
	requestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "miload_request_duration_seconds",
		Help:    "Service-reported latency of successful requests",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	})
	inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "miload_inflight_requests",
		Help: "Requests currently in flight",
	})
	usersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "miload_simulated_users_total",
		Help: "Simulated users completed",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, inflight, usersTotal)
}

func ObserveRequest(aborted bool, elapsed time.Duration) {
	if aborted {
		requestsTotal.WithLabelValues("aborted").Inc()
		return
	}
	requestsTotal.WithLabelValues("success").Inc()
	requestDuration.Observe(elapsed.Seconds())
}

func IncInflight() { inflight.Inc() }
func DecInflight() { inflight.Dec() }
func ObserveUser() { usersTotal.Inc() }

// OffsetAddr shifts the port of addr by offset so that every process of a
// fan-out can expose its own endpoint.
func OffsetAddr(addr string, offset int) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", errors.Wrapf(err, "invalid metrics address %q", addr)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", errors.Wrapf(err, "invalid metrics port %q", port)
	}
	return net.JoinHostPort(host, strconv.Itoa(p+offset)), nil
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infof("Serving metrics on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "metrics server on %s", addr)
	}
	return nil
}
