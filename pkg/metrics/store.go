package metrics

import (
	"database/sql"
	"log/slog"
	"sort"

	"github.com/mchmarny/lstvscan/pkg/data"
	"github.com/prometheus/client_golang/prometheus"
)

// StoreCollector reports row counts of the results store at scrape time.
type StoreCollector struct {
	db   *sql.DB
	rows *prometheus.Desc
	up   *prometheus.Desc
}

func NewStoreCollector(db *sql.DB) *StoreCollector {
	return &StoreCollector{
		db: db,
		rows: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, storeSubsystem, "rows"),
			"Rows in the results store by kind",
			[]string{"kind"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, storeSubsystem, "up"),
			"Whether the last store read succeeded",
			nil, nil,
		),
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rows
	ch <- c.up
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	state, err := data.GetDataState(c.db)
	if err != nil {
		slog.Debug("error reading store state", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	kinds := make([]string, 0, len(state))
	for k := range state {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(state[k]), k)
	}
}
