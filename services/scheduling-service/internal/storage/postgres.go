package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smartbook-ai/smartbook/libs/db"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/outbox"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, pool *db.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Postgres is the production Store. Appointment writes and generated
// recommendations record an outbox event in the same transaction.
type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgres(pool *db.Pool, ob *outbox.Repository) *Postgres {
	return &Postgres{pool: pool, outbox: ob}
}

var _ Store = (*Postgres)(nil)

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

const userColumns = `id, username, password_hash, name, email, phone, role, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt)
	return u, mapErr(err)
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (model.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
}

func (p *Postgres) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, name, email, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		u.Username, u.PasswordHash, u.Name, u.Email, u.Phone, u.Role))
}

func (p *Postgres) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

const appointmentColumns = `id, title, start_time, end_time, client_id, staff_id, location, notes, status, color, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.Title, &a.StartTime, &a.EndTime, &a.ClientID, &a.StaffID,
		&a.Location, &a.Notes, &a.Status, &a.Color, &a.CreatedAt, &a.UpdatedAt)
	return a, mapErr(err)
}

func (p *Postgres) GetAppointment(ctx context.Context, id int64) (model.Appointment, error) {
	return scanAppointment(p.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (p *Postgres) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.StartDate.IsZero() {
		add("start_time >= $%d", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		add("end_time <= $%d", f.EndDate)
	}
	if f.ClientID != nil {
		add("client_id = $%d", *f.ClientID)
	}
	if f.StaffID != nil {
		add("staff_id = $%d", *f.StaffID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	q := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY start_time, id`

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (p *Postgres) CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	var out model.Appointment
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (title, start_time, end_time, client_id, staff_id, location, notes, status, color)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+appointmentColumns,
			a.Title, a.StartTime, a.EndTime, a.ClientID, a.StaffID, a.Location, a.Notes, a.Status, a.Color))
		if err != nil {
			return err
		}
		return p.emit(ctx, tx, outbox.AppointmentCreated, "appointment", out.ID, out)
	})
	return out, err
}

func (p *Postgres) UpdateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	var out model.Appointment
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET title = $2, start_time = $3, end_time = $4, client_id = $5, staff_id = $6,
				location = $7, notes = $8, status = $9, color = $10, updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentColumns,
			a.ID, a.Title, a.StartTime, a.EndTime, a.ClientID, a.StaffID, a.Location, a.Notes, a.Status, a.Color))
		if err != nil {
			return err
		}
		return p.emit(ctx, tx, outbox.AppointmentUpdated, "appointment", out.ID, out)
	})
	return out, err
}

func (p *Postgres) DeleteAppointment(ctx context.Context, id int64) error {
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return p.emit(ctx, tx, outbox.AppointmentDeleted, "appointment", id, map[string]int64{"id": id})
	})
}

func (p *Postgres) emit(ctx context.Context, tx pgx.Tx, eventType, aggregate string, id int64, payload any) error {
	if p.outbox == nil {
		return nil
	}
	evt, err := outbox.NewEvent(eventType, aggregate, id, payload)
	if err != nil {
		return err
	}
	return p.outbox.Insert(ctx, tx, evt)
}

const recommendationColumns = `id, user_id, date, suggestion, used, created_at`

func scanRecommendation(row pgx.Row) (model.Recommendation, error) {
	var (
		r   model.Recommendation
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Date, &raw, &r.Used, &r.CreatedAt); err != nil {
		return model.Recommendation{}, mapErr(err)
	}
	if err := json.Unmarshal(raw, &r.Suggestion); err != nil {
		return model.Recommendation{}, fmt.Errorf("decode suggestion %d: %w", r.ID, err)
	}
	return r, nil
}

func (p *Postgres) CreateRecommendation(ctx context.Context, r model.Recommendation) (model.Recommendation, error) {
	raw, err := json.Marshal(r.Suggestion)
	if err != nil {
		return model.Recommendation{}, err
	}
	var out model.Recommendation
	err = p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanRecommendation(tx.QueryRow(ctx, `
			INSERT INTO ai_suggestions (user_id, date, suggestion, used)
			VALUES ($1, $2, $3, false)
			RETURNING `+recommendationColumns, r.UserID, r.Date, raw))
		if err != nil {
			return err
		}
		return p.emit(ctx, tx, outbox.RecommendationGenerated, "recommendation", out.ID, out)
	})
	return out, err
}

func (p *Postgres) GetRecommendation(ctx context.Context, id int64) (model.Recommendation, error) {
	return scanRecommendation(p.pool.QueryRow(ctx, `SELECT `+recommendationColumns+` FROM ai_suggestions WHERE id = $1`, id))
}

func (p *Postgres) ListRecommendationsByUser(ctx context.Context, userID int64) ([]model.Recommendation, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+recommendationColumns+` FROM ai_suggestions WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRecommendation)
}

func (p *Postgres) MarkRecommendationUsed(ctx context.Context, id int64) (model.Recommendation, error) {
	return scanRecommendation(p.pool.QueryRow(ctx, `
		UPDATE ai_suggestions SET used = true WHERE id = $1
		RETURNING `+recommendationColumns, id))
}

const integrationColumns = `id, user_id, provider, access_token, refresh_token, expires_at, connected, created_at`

func scanIntegration(row pgx.Row) (model.CalendarIntegration, error) {
	var ci model.CalendarIntegration
	err := row.Scan(&ci.ID, &ci.UserID, &ci.Provider, &ci.AccessToken, &ci.RefreshToken, &ci.ExpiresAt, &ci.Connected, &ci.CreatedAt)
	return ci, mapErr(err)
}

func (p *Postgres) CreateIntegration(ctx context.Context, ci model.CalendarIntegration) (model.CalendarIntegration, error) {
	return scanIntegration(p.pool.QueryRow(ctx, `
		INSERT INTO calendar_integrations (user_id, provider, access_token, refresh_token, expires_at, connected)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+integrationColumns,
		ci.UserID, ci.Provider, ci.AccessToken, ci.RefreshToken, ci.ExpiresAt, ci.Connected))
}

func (p *Postgres) GetIntegration(ctx context.Context, id int64) (model.CalendarIntegration, error) {
	return scanIntegration(p.pool.QueryRow(ctx, `SELECT `+integrationColumns+` FROM calendar_integrations WHERE id = $1`, id))
}

func (p *Postgres) ListIntegrationsByUser(ctx context.Context, userID int64) ([]model.CalendarIntegration, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+integrationColumns+` FROM calendar_integrations WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanIntegration)
}

func (p *Postgres) DeleteIntegration(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM calendar_integrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const notificationColumns = `id, user_id, appointment_id, type, method, sent, scheduled_for, created_at`

func scanNotification(row pgx.Row) (model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.AppointmentID, &n.Type, &n.Method, &n.Sent, &n.ScheduledFor, &n.CreatedAt)
	return n, mapErr(err)
}

func (p *Postgres) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	return scanNotification(p.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, appointment_id, type, method, sent, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		RETURNING `+notificationColumns,
		n.UserID, n.AppointmentID, n.Type, n.Method, n.Sent, nullTime(n.ScheduledFor)))
}

func (p *Postgres) CreateReminder(ctx context.Context, n model.Notification) (model.Notification, bool, error) {
	created, err := scanNotification(p.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, appointment_id, type, method, sent, scheduled_for)
		VALUES ($1, $2, 'reminder', $3, false, COALESCE($4, now()))
		ON CONFLICT (appointment_id) WHERE type = 'reminder' DO NOTHING
		RETURNING `+notificationColumns,
		n.UserID, n.AppointmentID, n.Method, nullTime(n.ScheduledFor)))
	if errors.Is(err, ErrNotFound) {
		return model.Notification{}, false, nil
	}
	if err != nil {
		return model.Notification{}, false, err
	}
	return created, true, nil
}

func (p *Postgres) ListNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNotification)
}

func (p *Postgres) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE NOT sent AND scheduled_for <= $1
		ORDER BY scheduled_for, id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNotification)
}

func (p *Postgres) MarkNotificationSent(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `UPDATE notifications SET sent = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
