package renderlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// MetricsSchema holds render timing datapoints.
const MetricsSchema = `
CREATE TABLE IF NOT EXISTS render_metrics (
    name      TEXT NOT NULL,
    ts        INTEGER NOT NULL,
    value     REAL NOT NULL,
    labels    TEXT,
    unit      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_render_metrics_name_ts ON render_metrics(name, ts DESC);
`

// Metric is one timing datapoint.
type Metric struct {
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"ts"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Unit      string            `json:"unit,omitempty"`
}

// Metrics buffers datapoints and writes them in batches. Writes never
// block rendering: a failed flush is logged and its datapoints dropped.
type Metrics struct {
	db        *sql.DB
	logger    *slog.Logger
	flushSize int

	mu     sync.Mutex
	buffer []Metric

	stop chan struct{}
	done chan struct{}
}

// NewMetrics applies MetricsSchema on db and starts the flush loop.
// Recommended: flushSize 100, interval 5s.
func NewMetrics(db *sql.DB, flushSize int, interval time.Duration, logger *slog.Logger) (*Metrics, error) {
	if _, err := db.Exec(MetricsSchema); err != nil {
		return nil, fmt.Errorf("renderlog: metrics schema: %w", err)
	}
	if flushSize <= 0 {
		flushSize = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		db:        db,
		logger:    logger,
		flushSize: flushSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.loop(interval)
	return m, nil
}

// Record queues m.
func (m *Metrics) Record(mt Metric) {
	if mt.Timestamp.IsZero() {
		mt.Timestamp = time.Now()
	}
	m.mu.Lock()
	m.buffer = append(m.buffer, mt)
	full := len(m.buffer) >= m.flushSize
	m.mu.Unlock()
	if full {
		m.Flush()
	}
}

// ObserveRender records a render stage duration as render_<stage>_ms.
func (m *Metrics) ObserveRender(stage string, d time.Duration, ok bool) {
	m.Record(Metric{
		Name:   "render_" + stage + "_ms",
		Value:  float64(d.Microseconds()) / 1000,
		Labels: map[string]string{"ok": strconv.FormatBool(ok)},
		Unit:   "milliseconds",
	})
}

// Query returns the datapoints named name (all when empty) recorded at or
// after since, newest first.
func (m *Metrics) Query(ctx context.Context, name string, since time.Time, limit int) ([]Metric, error) {
	q := `SELECT name, ts, value, labels, unit FROM render_metrics WHERE ts >= ?`
	args := []any{since.UnixMilli()}
	if name != "" {
		q += ` AND name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY ts DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("renderlog: query metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var (
			mt     Metric
			ts     int64
			labels sql.NullString
		)
		if err := rows.Scan(&mt.Name, &ts, &mt.Value, &labels, &mt.Unit); err != nil {
			return nil, fmt.Errorf("renderlog: scan metric: %w", err)
		}
		mt.Timestamp = time.UnixMilli(ts)
		if labels.Valid {
			json.Unmarshal([]byte(labels.String), &mt.Labels)
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// Cleanup deletes datapoints older than retention.
func (m *Metrics) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM render_metrics WHERE ts < ?`, time.Now().Add(-retention).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("renderlog: cleanup metrics: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes what is buffered and stops the loop.
func (m *Metrics) Close() error {
	close(m.stop)
	<-m.done
	return nil
}

func (m *Metrics) loop(interval time.Duration) {
	defer close(m.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			m.Flush()
			return
		case <-t.C:
			m.Flush()
		}
	}
}

// Flush writes the buffered datapoints now.
func (m *Metrics) Flush() {
	m.mu.Lock()
	batch := m.buffer
	m.buffer = nil
	m.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		m.logger.Error("renderlog: metrics begin", "error", err, "dropped", len(batch))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO render_metrics (name, ts, value, labels, unit) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		m.logger.Error("renderlog: metrics prepare", "error", err, "dropped", len(batch))
		return
	}
	defer stmt.Close()

	for _, mt := range batch {
		var labels sql.NullString
		if len(mt.Labels) > 0 {
			if b, err := json.Marshal(mt.Labels); err == nil {
				labels = sql.NullString{String: string(b), Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx, mt.Name, mt.Timestamp.UnixMilli(), mt.Value, labels, mt.Unit); err != nil {
			m.logger.Error("renderlog: metrics insert", "error", err, "metric", mt.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		m.logger.Error("renderlog: metrics commit", "error", err, "dropped", len(batch))
	}
}
