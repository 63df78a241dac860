package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

const (
	attemptInsertQuery = `
		INSERT INTO recovery_attempts (
			era, dbid, datadir, port,
			source_hostname, source_port, is_full_recovery,
			succeeded, error_type, error_msg, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	attemptSelectByEra = `
		SELECT
			id,
			era, dbid, datadir, port,
			source_hostname, source_port, is_full_recovery,
			succeeded, error_type, error_msg, finished_at
		FROM recovery_attempts
		WHERE era = ?
		ORDER BY id
	`

	attemptSelectFailedByEra = `
		SELECT
			id,
			era, dbid, datadir, port,
			source_hostname, source_port, is_full_recovery,
			succeeded, error_type, error_msg, finished_at
		FROM recovery_attempts
		WHERE era = ?
			AND succeeded = 0
		ORDER BY id
	`
)

// Attempt is a single finished segment recovery.
type Attempt struct {
	Id int64 `db:"id"`

	Era     string `db:"era"`
	Dbid    int    `db:"dbid"`
	Datadir string `db:"datadir"`
	Port    int    `db:"port"`

	SourceHostname string `db:"source_hostname"`
	SourcePort     int    `db:"source_port"`
	IsFullRecovery bool   `db:"is_full_recovery"`

	Succeeded bool `db:"succeeded"`

	// empty for successful attempts
	ErrorType string `db:"error_type"`
	ErrorMsg  string `db:"error_msg"`

	FinishedAt time.Time `db:"finished_at"`
}

type AttemptRepository struct {
	db *sqlx.DB

	now func() time.Time
}

func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt Attempt) (Attempt, error) {
	stmt, err := r.db.PrepareContext(ctx, attemptInsertQuery)
	if err != nil {
		return attempt, err
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(
		ctx,
		attempt.Era, attempt.Dbid, attempt.Datadir, attempt.Port,
		attempt.SourceHostname, attempt.SourcePort, attempt.IsFullRecovery,
		attempt.Succeeded, attempt.ErrorType, attempt.ErrorMsg, attempt.FinishedAt,
	)
	if err != nil {
		return attempt, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return attempt, err
	}

	attempt.Id = id

	return attempt, nil
}

func (r *AttemptRepository) FindByEra(ctx context.Context, era string) ([]Attempt, error) {
	var attempts []Attempt

	err := r.db.SelectContext(ctx, &attempts, attemptSelectByEra, era)
	if err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *AttemptRepository) FindFailedByEra(ctx context.Context, era string) ([]Attempt, error) {
	var attempts []Attempt

	err := r.db.SelectContext(ctx, &attempts, attemptSelectFailedByEra, era)
	if err != nil {
		return nil, err
	}

	return attempts, nil
}

// Record stores the outcome of a finished recovery command.
func (r *AttemptRepository) Record(ctx context.Context, era string, cmd recovery.Command) error {
	d := cmd.Descriptor()
	outcome := cmd.Outcome()

	attempt := Attempt{
		Era:            era,
		Dbid:           d.TargetDbid,
		Datadir:        d.TargetDatadir,
		Port:           d.TargetPort,
		SourceHostname: d.SourceHostname,
		SourcePort:     d.SourcePort,
		IsFullRecovery: d.IsFullRecovery,
		Succeeded:      outcome.Succeeded(),
		FinishedAt:     r.now().UTC(),
	}

	if !attempt.Succeeded {
		if f, err := outcome.Failure(); err == nil {
			attempt.ErrorType = string(f.ErrorType)
			attempt.ErrorMsg = f.ErrorMsg
		} else {
			attempt.ErrorType = string(recovery.ErrorTypeDefault)
			attempt.ErrorMsg = outcome.Stderr
		}
	}

	_, err := r.Create(ctx, attempt)

	return err
}
