/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Placements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bubblebox_placements_total",
			Help: "Total number of bubbles placed, by resolver outcome",
		},
		[]string{"outcome"},
	)

	SpiralRadius = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bubblebox_spiral_radius_pixels",
			Help:    "Radius at which spiral search found a free slot",
			Buckets: prometheus.LinearBuckets(30, 90, 9),
		},
	)

	RejectedSpeaks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bubblebox_rejected_speaks_total",
			Help: "Total number of speak calls rejected because the speaker was busy",
		},
	)

	ActiveScenes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bubblebox_active_scenes",
			Help: "Number of live scenes",
		},
	)

	ConnectedRenderers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bubblebox_connected_renderers",
			Help: "Number of connected renderer websockets",
		},
	)
)
