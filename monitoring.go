package rom

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

type Stats struct {
	Reads    uint64
	Writes   uint64
	Queries  uint64
	Replaces uint64
	Errors   uint64
}

func (db *DB) Stats() Stats {
	return Stats{
		Reads:    db.ReadCount.Load(),
		Writes:   db.WriteCount.Load(),
		Queries:  db.QueryCount.Load(),
		Replaces: db.ReplaceCount.Load(),
		Errors:   db.ErrorCount.Load(),
	}
}

// NamespaceStats describes the stored size of one namespace.
type NamespaceStats struct {
	Namespace string
	Records   int64
	IndexSets int
	OtherKeys int
	NextID    int64
	TotalKeys int
}

// NamespaceStats counts the keys stored under ns.
func (db *DB) NamespaceStats(ctx context.Context, ns string) (NamespaceStats, error) {
	prefix := NamespacePrefix(db.cfg.Prefix, ns)
	db.ReadCount.Add(1)
	keys, err := db.store.Scan(ctx, prefix)
	if err != nil {
		return NamespaceStats{}, err
	}
	st := NamespaceStats{Namespace: ns, TotalKeys: len(keys), NextID: 1}
	for _, key := range keys {
		switch rest := strings.TrimPrefix(key, prefix); {
		case rest == "keys":
			db.ReadCount.Add(1)
			st.Records, err = db.store.SCard(ctx, key)
			if err != nil {
				return st, err
			}
		case strings.HasPrefix(rest, "idx:"):
			st.IndexSets++
		case strings.HasPrefix(rest, "data:"):
		case rest == "next":
			st.NextID, err = db.peekNextID(ctx, ns)
			if err != nil {
				return st, err
			}
		default:
			st.OtherKeys++
		}
	}
	return st, nil
}

// Namespaces lists every namespace that has keys under the configured prefix.
func (db *DB) Namespaces(ctx context.Context) ([]string, error) {
	db.ReadCount.Add(1)
	keys, err := db.store.Scan(ctx, db.cfg.Prefix+"|")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, key := range keys {
		ns, ok := ParseNamespace(db.cfg.Prefix, key)
		if ok && (len(out) == 0 || out[len(out)-1] != ns) {
			out = append(out, ns)
		}
	}
	return out, nil
}

var opsDesc = prometheus.NewDesc(
	prometheus.BuildFQName("rom", "db", "operations_total"),
	"Store round trips issued by rom, by kind.",
	[]string{"kind"}, nil,
)

// Collector exports the DB's operation counters to Prometheus.
func (db *DB) Collector() prometheus.Collector {
	return dbCollector{db}
}

type dbCollector struct {
	db *DB
}

func (c dbCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- opsDesc
}

func (c dbCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.db.Stats()
	ch <- prometheus.MustNewConstMetric(opsDesc, prometheus.CounterValue, float64(s.Reads), "read")
	ch <- prometheus.MustNewConstMetric(opsDesc, prometheus.CounterValue, float64(s.Writes), "write")
	ch <- prometheus.MustNewConstMetric(opsDesc, prometheus.CounterValue, float64(s.Queries), "query")
	ch <- prometheus.MustNewConstMetric(opsDesc, prometheus.CounterValue, float64(s.Replaces), "replace")
	ch <- prometheus.MustNewConstMetric(opsDesc, prometheus.CounterValue, float64(s.Errors), "error")
}
