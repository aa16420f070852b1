package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/turtacn/idock-worker/internal/domain/docking/job"
	"github.com/turtacn/idock-worker/pkg/errors"
)

// JobSlice is one slice's worth of work claimed off the docking_jobs queue:
// the job's shared-filesystem path, box and ligand-filter parameters, and
// submitter contact info, plus this claim's own slice index — the Go shape
// of the fields main.cpp reads out of its MongoDB `istar.idock` document
// (`param_fields`/`jobid_fields`/`compt_fields` BSON projections) before it
// starts a slice's event loop.
type JobSlice struct {
	JobID                     string
	JobPath                   string
	SliceIndex                int
	NumSlices                 int
	CenterX, CenterY, CenterZ float64
	SizeX, SizeY, SizeZ       float64
	Bounds                    job.Bounds
	FilteringProbability      float64
	NumLigands                int
	Email                     string
	Description               string
	SubmittedAt               time.Time
}

// JobQueueRepository claims and tracks docking job slices in PostgreSQL,
// replacing the original's MongoDB findAndModify polling loop
// (_examples/original_source/idock/src/main.cpp, main.cpp) with the
// equivalent `UPDATE ... RETURNING ... FOR UPDATE SKIP LOCKED` idiom.
type JobQueueRepository struct {
	db queryExecutor
}

// NewJobQueueRepository constructs a JobQueueRepository over db (either a
// *sql.DB or a *sql.Tx).
func NewJobQueueRepository(db queryExecutor) *JobQueueRepository {
	return &JobQueueRepository{db: db}
}

// ClaimSlice atomically claims the next unscheduled slice of the oldest
// active job, incrementing that job's scheduled counter and returning the
// slice's own parameters. It returns (nil, nil) when no slice is currently
// claimable (the queue is empty or every active job is fully scheduled),
// mirroring spec.md's "centralized queue" drain-to-empty behavior.
func (r *JobQueueRepository) ClaimSlice(ctx context.Context) (*JobSlice, error) {
	const query = `
UPDATE docking_jobs
   SET scheduled = scheduled + 1
 WHERE id = (
   SELECT id FROM docking_jobs
    WHERE scheduled < num_slices AND status = 'active'
    ORDER BY submitted_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
 )
RETURNING id, job_path, scheduled - 1, num_slices,
          center_x, center_y, center_z, size_x, size_y, size_z,
          mwt_lb, mwt_ub, lgp_lb, lgp_ub, ads_lb, ads_ub, pds_lb, pds_ub,
          hbd_lb, hbd_ub, hba_lb, hba_ub, psa_lb, psa_ub, chg_lb, chg_ub, nrb_lb, nrb_ub,
          filtering_probability, num_ligands, email, description, submitted_at`

	row := r.db.QueryRowContext(ctx, query)

	var s JobSlice
	err := row.Scan(
		&s.JobID, &s.JobPath, &s.SliceIndex, &s.NumSlices,
		&s.CenterX, &s.CenterY, &s.CenterZ, &s.SizeX, &s.SizeY, &s.SizeZ,
		&s.Bounds.MwtLB, &s.Bounds.MwtUB, &s.Bounds.LogPLB, &s.Bounds.LogPUB,
		&s.Bounds.AdsLB, &s.Bounds.AdsUB, &s.Bounds.PdsLB, &s.Bounds.PdsUB,
		&s.Bounds.HBDLB, &s.Bounds.HBDUB, &s.Bounds.HBALB, &s.Bounds.HBAUB,
		&s.Bounds.TPSALB, &s.Bounds.TPSAUB, &s.Bounds.ChgLB, &s.Bounds.ChgUB,
		&s.Bounds.NrbLB, &s.Bounds.NrbUB,
		&s.FilteringProbability, &s.NumLigands,
		&s.Email, &s.Description, &s.SubmittedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "claiming a docking job slice")
	}
	return &s, nil
}

// CompleteSlice records that slice has finished and reports completedCount
// ligands docked, incrementing the job's completed-slice and
// completed-ligand counters.
func (r *JobQueueRepository) CompleteSlice(ctx context.Context, jobID string, slice, completedCount int) error {
	const query = `
UPDATE docking_jobs
   SET completed_slices = completed_slices + 1,
       completed_ligands = completed_ligands + $2
 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, jobID, completedCount); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "recording slice completion")
	}
	return nil
}

// IsJobDone reports whether every slice of jobID has completed.
func (r *JobQueueRepository) IsJobDone(ctx context.Context, jobID string) (bool, error) {
	const query = `SELECT completed_slices >= num_slices FROM docking_jobs WHERE id = $1`

	var done bool
	if err := r.db.QueryRowContext(ctx, query, jobID).Scan(&done); err != nil {
		if err == sql.ErrNoRows {
			return false, errors.New(errors.ErrCodeNotFound, "docking job not found")
		}
		return false, errors.Wrap(err, errors.ErrCodeDatabaseError, "checking job completion")
	}
	return done, nil
}

// MarkDone marks jobID as done, recording its completion time, the
// Go equivalent of main.cpp's `conn.update(... BSON("$set" << BSON("done" <<
// Date_t(millis_since_epoch))))` call.
func (r *JobQueueRepository) MarkDone(ctx context.Context, jobID string) error {
	const query = `UPDATE docking_jobs SET status = 'done', done_at = now() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, jobID); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "marking job done")
	}
	return nil
}
