package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	pkgch "CandleFlow/pkg/clickhouse"
	applogger "CandleFlow/pkg/logger"
)

// CHCandleFeed implements CandleFeed over one-minute bars in ClickHouse, rolling
// them up to the requested timeframe at query time.
type CHCandleFeed struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleFeed(ch *pkgch.Client, table string, l *applogger.Logger) *CHCandleFeed {
	return &CHCandleFeed{db: ch.DB(), table: table, l: l}
}

// rollup groups minute bars into buckets of %[2]d seconds.
const rollupSelect = `
        SELECT toStartOfInterval(bucket, INTERVAL %[2]d SECOND) AS b,
               argMin(open, bucket), max(high), min(low), argMax(close, bucket)
        FROM %[1]s
`

func (f *CHCandleFeed) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.Candle, error) {
	secs, err := intervalSeconds(tf)
	if err != nil {
		return models.Candle{}, err
	}
	q := fmt.Sprintf(rollupSelect+`
        WHERE symbol = ? AND bucket >= (
            SELECT toStartOfInterval(max(bucket), INTERVAL %[2]d SECOND) FROM %[1]s WHERE symbol = ?
        )
        GROUP BY b
        ORDER BY b DESC
        LIMIT 1
    `, f.table, secs)

	var c models.Candle
	err = f.db.QueryRowContext(ctx, q, symbol, symbol).Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Candle{}, domrepo.ErrNoCandle
	}
	if err != nil {
		return models.Candle{}, f.classify("fetch latest", symbol, tf, err)
	}
	c.Time = c.Time.UTC()
	return c, nil
}

// FetchRange returns bars whose open lies in [start, end].
func (f *CHCandleFeed) FetchRange(ctx context.Context, symbol string, tf domrepo.Timeframe, start, end time.Time) ([]models.Candle, error) {
	began := time.Now()
	secs, err := intervalSeconds(tf)
	if err != nil {
		return nil, err
	}
	dur := tf.Duration()
	q := fmt.Sprintf(rollupSelect+`
        WHERE symbol = ? AND bucket >= ? AND bucket < ?
        GROUP BY b
        HAVING b >= ? AND b <= ?
        ORDER BY b ASC
    `, f.table, secs)

	rows, err := f.db.QueryContext(ctx, q, symbol, start.UTC().Truncate(dur), end.UTC().Add(dur), start.UTC(), end.UTC())
	if err != nil {
		return nil, f.classify("fetch range", symbol, tf, err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, f.classify("scan candle", symbol, tf, err)
		}
		c.Time = c.Time.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, f.classify("rows", symbol, tf, err)
	}
	f.l.Debug("clickhouse fetch_range ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(began)),
	)
	return out, nil
}

// Health pings ClickHouse and maps failure to ErrUpstreamUnavailable.
func (f *CHCandleFeed) Health(ctx context.Context) error {
	if err := f.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domrepo.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (f *CHCandleFeed) classify(op, symbol string, tf domrepo.Timeframe, err error) error {
	if pkgch.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, domrepo.ErrUpstreamUnavailable, err)
	}
	f.l.Error("clickhouse "+op+" error",
		applogger.String("table", f.table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func intervalSeconds(tf domrepo.Timeframe) (int, error) {
	d := tf.Duration()
	if d <= 0 {
		return 0, fmt.Errorf("%w: timeframe %q", domrepo.ErrInvalidChannelKey, tf)
	}
	return int(d / time.Second), nil
}

var _ domrepo.CandleFeed = (*CHCandleFeed)(nil)
