package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dotrep-labs/reputation-engine/internal/stats"
	"github.com/dotrep-labs/reputation-engine/internal/types"
)

// weekFormat is how week boundaries are keyed in sqlite.
const weekFormat = "2006-01-02"

// Repository provides the data access operations over the contribution
// store.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the given database.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// InsertEvents stores a batch of contribution events and bumps the derived
// weekly aggregates in the same transaction. Events are immutable once
// verified: a re-posted id is ignored. Returns the number of newly stored
// events.
func (r *Repository) InsertEvents(ctx context.Context, events []types.ContributionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning ingest transaction: %w", err)
	}
	defer tx.Rollback()

	insertStmt := tx.StmtContext(ctx, r.db.stmt("insert_event"))
	bumpStmt := tx.StmtContext(ctx, r.db.stmt("bump_weekly"))

	inserted := 0
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		week := stats.AlignWeek(ev.Timestamp)
		if !ev.WeekStart.IsZero() {
			week = stats.AlignWeek(ev.WeekStart)
		}

		var anchored interface{}
		if ev.AnchoredAt != nil {
			anchored = ev.AnchoredAt.UTC()
		}

		res, err := insertStmt.ExecContext(ctx,
			ev.ID, ev.ActorID, week.Format(weekFormat), ev.Type, ev.Weight,
			ev.Timestamp.UTC(), ev.Verified, ev.Repo, ev.CID, ev.ReputationPoints, anchored)
		if err != nil {
			return 0, fmt.Errorf("inserting event %s: %w", ev.ID, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("checking insert of event %s: %w", ev.ID, err)
		}
		if rows == 0 {
			// Already stored; immutability means the original wins.
			continue
		}
		inserted++

		if _, err := bumpStmt.ExecContext(ctx, ev.ActorID, week.Format(weekFormat)); err != nil {
			return 0, fmt.Errorf("updating weekly aggregate for %s: %w", ev.ActorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing ingest transaction: %w", err)
	}
	return inserted, nil
}

// VerifiedEventsByActor returns the actor's verified events ordered by
// timestamp. An unknown actor yields an empty slice, not an error.
func (r *Repository) VerifiedEventsByActor(ctx context.Context, actorID string) ([]types.ContributionEvent, error) {
	rows, err := r.db.stmt("events_by_actor").QueryContext(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("querying events for %s: %w", actorID, err)
	}
	defer rows.Close()

	events := make([]types.ContributionEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// WeeklyAggregates returns the weekly counts within the last `weeks` weeks.
// An empty actorID returns the whole population, ordered by week then actor
// for deterministic downstream processing.
func (r *Repository) WeeklyAggregates(ctx context.Context, actorID string, weeks int) ([]types.WeeklyAggregate, error) {
	cutoff := windowStart(time.Now().UTC(), weeks).Format(weekFormat)

	var rows *sql.Rows
	var err error
	if actorID == "" {
		rows, err = r.db.stmt("weekly_window").QueryContext(ctx, cutoff)
	} else {
		rows, err = r.db.stmt("weekly_by_actor").QueryContext(ctx, actorID, cutoff)
	}
	if err != nil {
		return nil, fmt.Errorf("querying weekly aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make([]types.WeeklyAggregate, 0)
	for rows.Next() {
		var agg types.WeeklyAggregate
		var week string
		if err := rows.Scan(&agg.ActorID, &week, &agg.Count); err != nil {
			return nil, fmt.Errorf("scanning weekly aggregate: %w", err)
		}
		agg.WeekStart, err = time.ParseInLocation(weekFormat, week, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing week %q: %w", week, err)
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, rows.Err()
}

// windowStart is the earliest week boundary inside a window of `weeks`
// weeks that ends at (and includes) the current, possibly partial, week.
func windowStart(now time.Time, weeks int) time.Time {
	return stats.AlignWeek(now).AddDate(0, 0, -7*(weeks-1))
}

func scanEvent(rows *sql.Rows) (types.ContributionEvent, error) {
	var ev types.ContributionEvent
	var week string
	var anchored sql.NullTime
	if err := rows.Scan(&ev.ID, &ev.ActorID, &week, &ev.Type, &ev.Weight,
		&ev.Timestamp, &ev.Verified, &ev.Repo, &ev.CID, &ev.ReputationPoints, &anchored); err != nil {
		return ev, fmt.Errorf("scanning event: %w", err)
	}
	weekStart, err := time.ParseInLocation(weekFormat, week, time.UTC)
	if err != nil {
		return ev, fmt.Errorf("parsing week %q: %w", week, err)
	}
	ev.WeekStart = weekStart
	if anchored.Valid {
		t := anchored.Time.UTC()
		ev.AnchoredAt = &t
	}
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}
