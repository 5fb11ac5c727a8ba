package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	CustomersCreatedTotal prometheus.Counter
	CustomersDeletedTotal prometheus.Counter
	Customers             *prometheus.GaugeVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "customer_service_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		CustomersCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "customer_service_customers_created_total",
				Help: "Total number of customers successfully created.",
			},
		),
		CustomersDeletedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "customer_service_customers_deleted_total",
				Help: "Total number of customers successfully deleted.",
			},
		),
		Customers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "customer_service_customers",
				Help: "Number of stored customers by activity state.",
			},
			[]string{"state"},
		),
	}
)

func RecordDBQuery(queryName string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordCustomerCreated() {
	Business.CustomersCreatedTotal.Inc()
}

func RecordCustomerDeleted() {
	Business.CustomersDeletedTotal.Inc()
}

func SetCustomerCounts(active, inactive int64) {
	Business.Customers.WithLabelValues("active").Set(float64(active))
	Business.Customers.WithLabelValues("inactive").Set(float64(inactive))
}
