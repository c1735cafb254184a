package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dm",
		Name:      "messages_sent_total",
		Help:      "Messages persisted, by kind (text, image, voice).",
	}, []string{"kind"})

	Translations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dm",
		Name:      "translations_total",
		Help:      "Translation attempts by outcome (ok, skipped, degraded).",
	}, []string{"outcome"})

	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dm",
		Name:      "pushes_total",
		Help:      "Live push attempts by outcome (delivered, offline, dropped).",
	}, []string{"outcome"})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dm",
		Name:      "media_uploads_total",
		Help:      "Image uploads by outcome (ok, rejected, failed).",
	}, []string{"outcome"})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dm",
		Name:      "online_users",
		Help:      "Users with a registered live connection.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
