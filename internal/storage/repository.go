package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"alertpulse/internal/alerts"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

const alertColumns = `id, spec, enabled, state, snoozed_until, last_checked_at, consecutive_errors, status`

func (r *Repository) ListEnabledAlerts(ctx context.Context) ([]alerts.Alert, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts WHERE enabled = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *Repository) ListAlerts(ctx context.Context) ([]alerts.Alert, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *Repository) GetAlert(ctx context.Context, id string) (alerts.Alert, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts WHERE id=$1`, id)
	alert, err := scanAlert(row)
	if err != nil {
		return alerts.Alert{}, ErrNotFound
	}
	return alert, nil
}

func (r *Repository) CreateAlert(ctx context.Context, a alerts.Alert) error {
	spec, err := marshalSpec(a)
	if err != nil {
		return err
	}
	state := a.State
	if state == "" {
		state = alerts.StateNotFiring
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO alerts (id, spec, enabled, state, consecutive_errors, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,0,$5,now(),now())`,
		a.ID, spec, a.Enabled, state, alerts.StatusActive)
	return err
}

// UpdateAlert replaces the configuration spec; runtime fields are untouched.
func (r *Repository) UpdateAlert(ctx context.Context, a alerts.Alert) error {
	spec, err := marshalSpec(a)
	if err != nil {
		return err
	}
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alerts SET spec=$1, enabled=$2, updated_at=now() WHERE id=$3`,
		spec, a.Enabled, a.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteAlert(ctx context.Context, id string) error {
	tag, err := r.Store.Pool.Exec(ctx, `DELETE FROM alerts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRuntime is the cycle's last-writer update of the derived fields.
func (r *Repository) UpdateRuntime(ctx context.Context, id string, state alerts.State, checkedAt time.Time, consecutiveErrors int, status string) error {
	_, err := r.Store.Pool.Exec(ctx, `
		UPDATE alerts SET state=$1, last_checked_at=$2, consecutive_errors=$3, status=$4, updated_at=now() WHERE id=$5`,
		state, checkedAt, consecutiveErrors, status, id)
	return err
}

func (r *Repository) SetSnooze(ctx context.Context, id string, until time.Time) error {
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alerts SET state=$1, snoozed_until=$2, updated_at=now() WHERE id=$3`,
		alerts.StateSnoozed, until, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSnooze resets the alert to NOT_FIRING and clears last_checked_at so
// the next due-scan re-evaluates it.
func (r *Repository) ClearSnooze(ctx context.Context, id string) error {
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alerts SET state=$1, snoozed_until=NULL, last_checked_at=NULL, updated_at=now() WHERE id=$2`,
		alerts.StateNotFiring, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateCheck(ctx context.Context, check alerts.Check) error {
	breaches, err := json.Marshal(check.Breaches)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(check.Metadata)
	if err != nil {
		return err
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO alert_checks (id, alert_id, created_at, state, calculated_value, raw_value, breaches, metadata, error_tag, targets_notified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		check.ID, check.AlertID, check.CreatedAt, check.State, check.CalculatedValue, check.RawValue,
		breaches, metadata, check.ErrorTag, check.TargetsNotified)
	return err
}

func (r *Repository) ListChecks(ctx context.Context, alertID string, limit int) ([]alerts.Check, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT id, alert_id, created_at, state, calculated_value, raw_value, breaches, metadata, error_tag, targets_notified
		FROM alert_checks WHERE alert_id=$1 ORDER BY created_at DESC LIMIT $2`, alertID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	checks := []alerts.Check{}
	for rows.Next() {
		var check alerts.Check
		var breaches, metadata []byte
		if err := rows.Scan(&check.ID, &check.AlertID, &check.CreatedAt, &check.State, &check.CalculatedValue,
			&check.RawValue, &breaches, &metadata, &check.ErrorTag, &check.TargetsNotified); err != nil {
			return nil, err
		}
		if len(breaches) > 0 {
			if err := json.Unmarshal(breaches, &check.Breaches); err != nil {
				return nil, fmt.Errorf("decode breaches for check %s: %w", check.ID, err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &check.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for check %s: %w", check.ID, err)
			}
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

// marshalSpec strips runtime fields before storing the configuration JSON;
// the runtime columns stay authoritative.
func marshalSpec(a alerts.Alert) ([]byte, error) {
	a.State = ""
	a.LastCheckedAt = nil
	a.ConsecutiveErrors = 0
	a.Status = ""
	a.SnoozedUntil = nil
	return json.Marshal(a)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (alerts.Alert, error) {
	var spec []byte
	var a alerts.Alert
	var id string
	var enabled bool
	var state string
	var snoozedUntil, lastCheckedAt *time.Time
	var consecutiveErrors int
	var status string
	if err := row.Scan(&id, &spec, &enabled, &state, &snoozedUntil, &lastCheckedAt, &consecutiveErrors, &status); err != nil {
		return alerts.Alert{}, err
	}
	if err := json.Unmarshal(spec, &a); err != nil {
		return alerts.Alert{}, fmt.Errorf("decode spec for alert %s: %w", id, err)
	}
	a.ID = id
	a.Enabled = enabled
	a.State = alerts.State(state)
	a.SnoozedUntil = snoozedUntil
	a.LastCheckedAt = lastCheckedAt
	a.ConsecutiveErrors = consecutiveErrors
	a.Status = status
	return a, nil
}

func scanAlerts(rows pgx.Rows) ([]alerts.Alert, error) {
	results := []alerts.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, alert)
	}
	return results, rows.Err()
}
