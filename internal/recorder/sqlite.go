package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"BreadthSentinel/internal/model"
)

// SQLiteRecorder persists classification outputs to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets dashboards read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS market_states (
			date            TEXT PRIMARY KEY,
			regime          TEXT NOT NULL,
			bottom_stage    TEXT,
			action_signal   TEXT NOT NULL,
			exposure_pct    INTEGER NOT NULL,
			weighted_score  REAL,
			pct_above_ma20  REAL,
			pct_above_ma50  REAL,
			pct_above_ma100 REAL,
			advancing_count INTEGER,
			declining_count INTEGER,
			index_close     REAL,
			state_json      TEXT NOT NULL,
			updated_at      INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sector_ranks (
			date           TEXT NOT NULL,
			sector_id      TEXT NOT NULL,
			strength_score REAL,
			rs_ratio       REAL,
			rs_momentum    REAL,
			quadrant       TEXT NOT NULL,
			PRIMARY KEY (date, sector_id)
		)`,

		`CREATE TABLE IF NOT EXISTS alerts_history (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol        TEXT NOT NULL,
			date          TEXT NOT NULL,
			detector_type TEXT NOT NULL,
			direction     TEXT NOT NULL,
			strength      REAL NOT NULL,
			payload       TEXT NOT NULL,
			UNIQUE (symbol, date, detector_type, payload)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_history_date ON alerts_history(date)`,

		`CREATE TABLE IF NOT EXISTS alerts_latest (
			symbol        TEXT NOT NULL,
			detector_type TEXT NOT NULL,
			date          TEXT NOT NULL,
			direction     TEXT NOT NULL,
			strength      REAL NOT NULL,
			payload       TEXT NOT NULL,
			PRIMARY KEY (symbol, detector_type)
		)`,

		`CREATE TABLE IF NOT EXISTS run_log (
			run_id            TEXT PRIMARY KEY,
			date              TEXT,
			finished_at       INTEGER NOT NULL,
			duration_ms       INTEGER,
			steps             TEXT,
			symbols_processed INTEGER,
			symbols_skipped   INTEGER,
			alerts_emitted    INTEGER,
			fatal             INTEGER NOT NULL,
			fatal_error       TEXT,
			skips_json        TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) SaveMarketState(ctx context.Context, state *model.MarketState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal market state: %w", err)
	}
	var stage any
	if state.BottomStage != nil {
		stage = string(*state.BottomStage)
	}
	b := state.Breadth
	_, err = r.db.ExecContext(ctx, `INSERT INTO market_states
		(date, regime, bottom_stage, action_signal, exposure_pct, weighted_score,
		 pct_above_ma20, pct_above_ma50, pct_above_ma100, advancing_count, declining_count,
		 index_close, state_json, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(date) DO UPDATE SET
			regime = excluded.regime,
			bottom_stage = excluded.bottom_stage,
			action_signal = excluded.action_signal,
			exposure_pct = excluded.exposure_pct,
			weighted_score = excluded.weighted_score,
			pct_above_ma20 = excluded.pct_above_ma20,
			pct_above_ma50 = excluded.pct_above_ma50,
			pct_above_ma100 = excluded.pct_above_ma100,
			advancing_count = excluded.advancing_count,
			declining_count = excluded.declining_count,
			index_close = excluded.index_close,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`,
		state.Date.Format(model.DateLayout), string(state.Regime), stage, string(state.Signal),
		state.ExposurePct, state.WeightedScore,
		b.PctAboveMA20, b.PctAboveMA50, b.PctAboveMA100, b.AdvancingCount, b.DecliningCount,
		state.Index.Close, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save market state: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) SaveSectorRanks(ctx context.Context, ranks []model.SectorRank) error {
	if len(ranks) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO sector_ranks
			(date, sector_id, strength_score, rs_ratio, rs_momentum, quadrant)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(date, sector_id) DO UPDATE SET
				strength_score = excluded.strength_score,
				rs_ratio = excluded.rs_ratio,
				rs_momentum = excluded.rs_momentum,
				quadrant = excluded.quadrant`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, s := range ranks {
			if _, err := stmt.ExecContext(ctx, s.Date.Format(model.DateLayout), s.SectorID,
				s.StrengthScore, s.RSRatio, s.RSMomentum, string(s.Quadrant)); err != nil {
				return fmt.Errorf("save sector %s: %w", s.SectorID, err)
			}
		}
		return nil
	})
}

// RecordAlerts writes every record to alerts_history and the per-(symbol,
// detector) projection of the batch to alerts_latest. A stored latest record is
// replaced only by one dated on or after it.
func (r *SQLiteRecorder) RecordAlerts(ctx context.Context, records []model.AlertRecord) error {
	if len(records) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		hist, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO alerts_history
			(symbol, date, detector_type, direction, strength, payload)
			VALUES (?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer hist.Close()

		inserted := 0
		for _, a := range records {
			payload, err := encodePayload(a.Payload)
			if err != nil {
				return fmt.Errorf("alert %s/%s: %w", a.Symbol, a.Detector, err)
			}
			res, err := hist.ExecContext(ctx, a.Symbol, a.Date.Format(model.DateLayout), string(a.Detector),
				string(a.Direction), a.Strength, payload)
			if err != nil {
				return fmt.Errorf("append alert %s/%s: %w", a.Symbol, a.Detector, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}

		latest, err := tx.PrepareContext(ctx, `INSERT INTO alerts_latest
			(symbol, detector_type, date, direction, strength, payload)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(symbol, detector_type) DO UPDATE SET
				date = excluded.date,
				direction = excluded.direction,
				strength = excluded.strength,
				payload = excluded.payload
			WHERE excluded.date >= alerts_latest.date`)
		if err != nil {
			return err
		}
		defer latest.Close()

		for _, a := range model.LatestAlerts(records) {
			payload, err := encodePayload(a.Payload)
			if err != nil {
				return err
			}
			if _, err := latest.ExecContext(ctx, a.Symbol, string(a.Detector), a.Date.Format(model.DateLayout),
				string(a.Direction), a.Strength, payload); err != nil {
				return fmt.Errorf("upsert latest alert %s/%s: %w", a.Symbol, a.Detector, err)
			}
		}

		r.log.Debug().Int("records", len(records)).Int("new", inserted).Msg("alerts recorded")
		return nil
	})
}

func (r *SQLiteRecorder) SaveRun(ctx context.Context, rep model.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps, err := json.Marshal(rep.Steps)
	if err != nil {
		return err
	}
	skips, err := json.Marshal(rep.Skips)
	if err != nil {
		return err
	}
	var date any
	if !rep.Date.IsZero() {
		date = rep.Date.Format(model.DateLayout)
	}
	fatal := 0
	if rep.Fatal {
		fatal = 1
	}
	_, err = r.db.ExecContext(ctx, `INSERT OR REPLACE INTO run_log
		(run_id, date, finished_at, duration_ms, steps, symbols_processed, symbols_skipped,
		 alerts_emitted, fatal, fatal_error, skips_json)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rep.RunID, date, time.Now().Unix(), rep.Duration.Milliseconds(), string(steps),
		rep.SymbolsProcessed, rep.SymbolsSkipped, rep.AlertsEmitted, fatal, rep.FatalError, string(skips),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// LatestAlerts returns the latest view ordered by symbol and detector.
func (r *SQLiteRecorder) LatestAlerts(ctx context.Context) ([]model.AlertRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, detector_type, date, direction, strength, payload
		FROM alerts_latest ORDER BY symbol, detector_type`)
	if err != nil {
		return nil, fmt.Errorf("query latest alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var (
			a                            model.AlertRecord
			detector, date, dir, payload string
		)
		if err := rows.Scan(&a.Symbol, &detector, &date, &dir, &a.Strength, &payload); err != nil {
			return nil, err
		}
		if a.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, fmt.Errorf("alert %s date %q: %w", a.Symbol, date, err)
		}
		if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
			return nil, fmt.Errorf("alert %s payload: %w", a.Symbol, err)
		}
		a.Detector = model.DetectorType(detector)
		a.Direction = model.Direction(dir)
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestMarketState returns the most recent stored state, or nil when none exists.
func (r *SQLiteRecorder) LatestMarketState(ctx context.Context) (*model.MarketState, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT state_json FROM market_states ORDER BY date DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest market state: %w", err)
	}
	var state model.MarketState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode market state: %w", err)
	}
	return &state, nil
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func (r *SQLiteRecorder) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func encodePayload(p map[string]any) (string, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}
