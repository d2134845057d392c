// Package metrics 暴露文档摄取流水线的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestJobsTotal 按终态统计摄取任务数，result 取 completed / error / rejected。
	IngestJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragweb_ingest_jobs_total",
		Help: "摄取任务终态计数",
	}, []string{"result"})

	// IngestJobsInflight 是当前在途的摄取任务数。
	IngestJobsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ragweb_ingest_jobs_inflight",
		Help: "在途摄取任务数",
	})

	// UploadsTotal 统计成功入库的上传文件数。
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragweb_uploads_total",
		Help: "上传文件计数",
	})
)
