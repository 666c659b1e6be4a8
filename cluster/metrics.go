package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowboat_cluster_tasks_submitted_total",
		Help: "Tasks submitted to the cluster",
	})
	metricTasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowboat_cluster_tasks_completed_total",
		Help: "Tasks that resolved successfully",
	})
	metricTasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowboat_cluster_tasks_failed_total",
		Help: "Tasks that failed, including dependency failures",
	})
	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rowboat_cluster_queue_depth",
		Help: "Tasks submitted but not yet resolved or failed",
	})
	metricTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rowboat_cluster_task_duration_seconds",
		Help:    "Wall time of task execution on a worker",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"op"})
)
