package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	pkgch "CandleFlow/pkg/clickhouse"
)

const sessionDateLayout = "2006-01-02"

// CHSignalSource stores and serves flow signals keyed by symbol and session date.
type CHSignalSource struct {
	db    *sql.DB
	table string
	loc   *time.Location
}

// NewCHSignalSource creates the signal table accessor. loc decides which session
// date an ingested signal belongs to.
func NewCHSignalSource(ch *pkgch.Client, table string, loc *time.Location) *CHSignalSource {
	return &CHSignalSource{db: ch.DB(), table: table, loc: loc}
}

// FetchEvents returns the signals of the session date in any order. Every failure is
// reported as ErrSignalSourceUnreadable. Unrecognised kinds are passed through for the
// aligner to reject.
func (s *CHSignalSource) FetchEvents(ctx context.Context, symbol string, date time.Time) ([]models.SignalEvent, error) {
	q := fmt.Sprintf("SELECT ts, kind FROM %s WHERE symbol = ? AND session_date = ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, date.Format(sessionDateLayout))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domrepo.ErrSignalSourceUnreadable, err)
	}
	defer rows.Close()

	var out []models.SignalEvent
	for rows.Next() {
		var (
			ts   time.Time
			kind string
		)
		if err := rows.Scan(&ts, &kind); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domrepo.ErrSignalSourceUnreadable, err)
		}
		k, perr := models.ParseSignalKind(kind)
		if perr != nil {
			k = models.SignalKind(kind)
		}
		out = append(out, models.SignalEvent{Time: ts.UTC(), Kind: k})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domrepo.ErrSignalSourceUnreadable, err)
	}
	return out, nil
}

func (s *CHSignalSource) StoreSignal(ctx context.Context, symbol string, ev models.SignalEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, session_date, ts, kind) VALUES (?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		symbol,
		ev.Time.In(s.loc).Format(sessionDateLayout),
		ev.Time.UTC(),
		string(ev.Kind),
	)
	if err != nil {
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

var (
	_ domrepo.SignalSource = (*CHSignalSource)(nil)
	_ domrepo.SignalStore  = (*CHSignalSource)(nil)
)
