package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var HttpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_http_requests_total",
}, []string{"action", "method"})
var HttpResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_http_responses_total",
}, []string{"action", "method", "statusCode"})
var HttpResponseTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name: "gallery_http_response_time_seconds",
}, []string{"action", "method"})
var S3Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_s3_operations_total",
}, []string{"operation"})
var OrderStoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_order_store_operations_total",
}, []string{"operation"})
var CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_cache_hits_total",
}, []string{"cache"})
var CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_cache_misses_total",
}, []string{"cache"})
var ZipBuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_zip_builds_total",
}, []string{"artifactType", "result"})
var ZipBuildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name: "gallery_zip_build_seconds",
}, []string{"artifactType"})
var LocksReclaimed = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_build_locks_reclaimed_total",
}, []string{"artifactType"})
var TasksScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_pool_tasks_scheduled_total",
}, []string{"queue"})

func init() {
	prometheus.MustRegister(HttpRequests)
	prometheus.MustRegister(HttpResponses)
	prometheus.MustRegister(HttpResponseTime)
	prometheus.MustRegister(S3Operations)
	prometheus.MustRegister(OrderStoreOperations)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ZipBuilds)
	prometheus.MustRegister(ZipBuildSeconds)
	prometheus.MustRegister(LocksReclaimed)
	prometheus.MustRegister(TasksScheduled)
}
