package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PulseCast/internal/domain/models"
	"PulseCast/internal/services/features"
	pkgch "PulseCast/pkg/clickhouse"
	applogger "PulseCast/pkg/logger"
)

// CHFeatureStore implements FeatureStore backed by the ClickHouse daily
// summary table. Raw summaries are fetched date-ordered and engineered
// into feature vectors in process, so the rolling statistics stay in one
// place.
type CHFeatureStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, table string) *CHFeatureStore {
	return &CHFeatureStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

// TrainingMatrix returns engineered features with next-day targets for up
// to maxDays of history, ordered by date ascending. The fetch window is
// extended backwards so the first usable day has its rolling baselines.
func (s *CHFeatureStore) TrainingMatrix(ctx context.Context, maxDays int) (*models.FeatureMatrix, error) {
	start := time.Now()
	days, err := s.fetchLatest(ctx, maxDays+features.BaselineDays)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse training_matrix query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("training matrix: %w", err)
	}

	m := features.BuildMatrix(days)
	if len(m.Rows) > maxDays {
		drop := len(m.Rows) - maxDays
		m.Rows = m.Rows[drop:]
		m.Targets = m.Targets[drop:]
		m.Dates = m.Dates[drop:]
	}
	if s.l != nil {
		s.l.Info("clickhouse training_matrix ok",
			applogger.Int("days", len(days)),
			applogger.Int("samples", len(m.Rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return m, nil
}

// LatestWindow returns feature vectors for the most recent `days` days
// without targets, ordered by date ascending.
func (s *CHFeatureStore) LatestWindow(ctx context.Context, windowDays int) (*models.FeatureMatrix, error) {
	start := time.Now()
	days, err := s.fetchLatest(ctx, windowDays+features.BaselineDays)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_window query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("latest window: %w", err)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("latest window: no summaries stored")
	}

	m := features.BuildWindow(days, windowDays)
	if s.l != nil {
		s.l.Info("clickhouse latest_window ok",
			applogger.Int("days", len(days)),
			applogger.Int("rows", len(m.Rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return m, nil
}

// fetchLatest reads the newest n summaries and returns them date-ascending.
func (s *CHFeatureStore) fetchLatest(ctx context.Context, n int) ([]*models.DailySummary, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY date DESC LIMIT ?", summaryColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tmp := make([]*models.DailySummary, 0, n)
	for rows.Next() {
		d, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		tmp = append(tmp, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	return tmp, nil
}
