// Package docking wires the domain-core docking pipeline
// (internal/domain/docking/job) to the ambient infrastructure: it claims
// slices off the PostgreSQL job queue, reads receptor/ligand/headers files
// off the shared job filesystem, drives job.RunLigand per ligand, writes
// the per-slice CSV, and — once every slice of a job has reported in —
// combines them into the final gzip outputs, uploads those to object
// storage, and sends the completion email. This is the Go shape of
// _examples/original_source/idock/src/main.cpp's single long-lived event
// loop, split into units a horizontally-scaled worker fleet can run
// independently.
package docking

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/domain/docking/evaluator"
	"github.com/turtacn/idock-worker/internal/domain/docking/gridmap"
	"github.com/turtacn/idock-worker/internal/domain/docking/job"
	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/domain/docking/pool"
	"github.com/turtacn/idock-worker/internal/domain/docking/receptor"
	"github.com/turtacn/idock-worker/internal/domain/docking/rescore"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/idock-worker/internal/infrastructure/database/redis"
	"github.com/turtacn/idock-worker/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/idock-worker/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/idock-worker/internal/infrastructure/notify"
	"github.com/turtacn/idock-worker/internal/infrastructure/storage/minio"
	"github.com/turtacn/idock-worker/internal/math/vec3"
	"github.com/turtacn/idock-worker/pkg/errors"
)

const (
	receptorFile = "receptor.pdbqt"
	ligandsFile  = "ligands.pdbqt"
	headersFile  = "headers.bin"
	forestFile   = "forest.rf"
)

// Worker drives the claim-slice / dock-slice / combine-if-done cycle for
// one worker process. Its scoring table and random forest are loaded once
// at process startup and passed in (they depend only on the atom-type universe, not on the job's
// own parameters) and its pool is shared across every ligand in a slice.
type Worker struct {
	Queue     *repositories.JobQueueRepository
	Objects   minio.ObjectStorageRepository
	Bucket    string
	Producer  *kafka.Producer
	Notifier  *notify.Notifier
	Logger    logging.Logger
	Pool      *pool.Pool
	Forest    *rescore.Forest
	SF        *scoring.Table
	JobConfig job.Config
	Locks     redis.LockFactory
	rng       *rand.Rand
}

// NewWorker constructs a Worker. sf and forest are shared, long-lived
// resources precomputed once at process startup (see cmd/dock-worker);
// seed seeds the worker's own RNG, from which every job.RunLigand call
// derives its per-task seeds.
func NewWorker(queue *repositories.JobQueueRepository, objects minio.ObjectStorageRepository, bucket string, producer *kafka.Producer, notifier *notify.Notifier, logger logging.Logger, p *pool.Pool, sf *scoring.Table, forest *rescore.Forest, seed int64, locks redis.LockFactory, jobConfig job.Config) *Worker {
	return &Worker{
		Queue:     queue,
		Objects:   objects,
		Bucket:    bucket,
		Producer:  producer,
		Notifier:  notifier,
		Logger:    logger,
		Pool:      p,
		Forest:    forest,
		SF:        sf,
		JobConfig: jobConfig,
		Locks:     locks,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// RunOnce claims one slice and fully docks it, returning false when the
// queue currently has no claimable slice (the caller should back off
// before polling again).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	slice, err := w.Queue.ClaimSlice(ctx)
	if err != nil {
		return false, err
	}
	if slice == nil {
		return false, nil
	}

	if err := w.runSlice(ctx, slice); err != nil {
		return true, err
	}
	return true, nil
}

func (w *Worker) runSlice(ctx context.Context, s *repositories.JobSlice) error {
	b := box.New(vec3.Vec3{s.CenterX, s.CenterY, s.CenterZ}, vec3.Vec3{s.SizeX, s.SizeY, s.SizeZ}, box.DefaultGranularity)

	recFile, err := os.Open(filepath.Join(s.JobPath, receptorFile))
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "opening receptor file")
	}
	defer recFile.Close()
	rec, err := receptor.Parse(recFile, b)
	if err != nil {
		return err
	}

	headers, err := os.Open(filepath.Join(s.JobPath, headersFile))
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "opening headers.bin")
	}
	defer headers.Close()

	ligands, err := os.Open(filepath.Join(s.JobPath, ligandsFile))
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "opening ligands file")
	}
	defer ligands.Close()
	ligandsInfo, err := ligands.Stat()
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "statting ligands file")
	}

	sliceCSVPath := filepath.Join(s.JobPath, strconv.Itoa(s.SliceIndex)+".csv")
	sliceCSV, err := os.Create(sliceCSVPath)
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "creating slice csv file")
	}
	defer sliceCSV.Close()
	csvWriter := bufio.NewWriter(sliceCSV)

	cache := gridmap.NewCache(b)
	begin, end := sliceBounds(s.SliceIndex, s.NumSlices, s.NumLigands)

	docked := 0
	for i := begin; i < end; i++ {
		outcome, err := w.dockOne(rec, b, cache, ligands, headers, ligandsInfo.Size(), i, s)
		if err != nil {
			return err
		}
		if outcome == nil {
			continue
		}
		if err := job.WriteSliceRow(csvWriter, *outcome); err != nil {
			return errors.Wrap(err, errors.CodeIOError, "writing slice csv row")
		}
		docked++
	}
	if err := csvWriter.Flush(); err != nil {
		return errors.Wrap(err, errors.CodeIOError, "flushing slice csv")
	}

	if err := w.Queue.CompleteSlice(ctx, s.JobID, s.SliceIndex, docked); err != nil {
		return err
	}
	w.publishSliceCompleted(ctx, s, docked, end-begin-docked)

	done, err := w.Queue.IsJobDone(ctx, s.JobID)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	return w.combine(ctx, s)
}

// dockOne seeks to ligand index i's offset, parses its REMARK property
// line and body, applies the filter, and docks it if admitted — main.cpp's
// per-ligand loop body (lines ~277-400).
func (w *Worker) dockOne(rec *receptor.Receptor, b *box.Box, cache *gridmap.Cache, ligands *os.File, headers io.ReaderAt, ligandsSize int64, i int, s *repositories.JobSlice) (*job.Outcome, error) {
	offset, err := job.ReadOffset(headers, int64(i))
	if err != nil {
		return nil, err
	}
	next := ligandsSize
	if nextOffset, err := job.ReadOffset(headers, int64(i)+1); err == nil {
		next = nextOffset
	}

	section := io.NewSectionReader(ligands, offset, next-offset)
	br := bufio.NewReader(section)

	remarkLine, err := br.ReadString('\n')
	if err != nil && remarkLine == "" {
		return nil, errors.Wrap(err, errors.CodeIOError, "reading ligand REMARK line")
	}
	props, err := job.ParseProperties(remarkLine)
	if err != nil {
		return nil, nil
	}
	if !s.Bounds.Admits(props) {
		return nil, nil
	}
	if !job.RandomSample(w.rng.Float64(), s.FilteringProbability) {
		return nil, nil
	}

	lig, err := ligand.Parse(br)
	if err != nil {
		return nil, nil
	}

	outcome, err := job.RunLigand(lig, i, rec, b, cache, w.SF, w.Forest, w.Pool, w.rng, w.JobConfig)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// loadLigandByIndex seeks to ligand index idx's byte range in ligands and
// parses it, returning its REMARK properties alongside — the same seek
// logic as dockOne but without the filter/sampling steps, since a combined
// row already survived those during slice docking. A nil, nil, nil return
// means the ligand's section could not be re-parsed and the row is
// dropped from the final output rather than failing the whole combine.
func (w *Worker) loadLigandByIndex(ligands *os.File, headers io.ReaderAt, ligandsSize int64, idx int) (*ligand.Ligand, job.Properties, error) {
	offset, err := job.ReadOffset(headers, int64(idx))
	if err != nil {
		return nil, job.Properties{}, err
	}
	next := ligandsSize
	if nextOffset, err := job.ReadOffset(headers, int64(idx)+1); err == nil {
		next = nextOffset
	}

	section := io.NewSectionReader(ligands, offset, next-offset)
	br := bufio.NewReader(section)

	remarkLine, err := br.ReadString('\n')
	if err != nil && remarkLine == "" {
		return nil, job.Properties{}, errors.Wrap(err, errors.CodeIOError, "reading ligand REMARK line")
	}
	props, err := job.ParseProperties(remarkLine)
	if err != nil {
		return nil, job.Properties{}, nil
	}

	lig, err := ligand.Parse(br)
	if err != nil {
		return nil, job.Properties{}, nil
	}
	return lig, props, nil
}

func sliceBounds(sliceIndex, numSlices, numLigands int) (begin, end int) {
	perSlice := numLigands / numSlices
	spare := numLigands - perSlice*numSlices
	begin = sliceIndex*perSlice + min(sliceIndex, spare)
	end = begin + perSlice
	if sliceIndex < spare {
		end++
	}
	return begin, end
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (w *Worker) publishSliceCompleted(ctx context.Context, s *repositories.JobSlice, scored, skipped int) {
	env, err := kafka.NewEventEnvelope(kafka.TopicSliceCompleted, "dock-worker", kafka.SliceCompletedPayload{
		JobID:          s.JobID,
		SliceIndex:     s.SliceIndex,
		LigandsScored:  scored,
		LigandsSkipped: skipped,
		CompletedAt:    time.Now().UTC(),
	})
	if err != nil {
		w.Logger.Error("failed to build slice-completed event", logging.Err(err))
		return
	}
	msg, err := env.ToMessage(kafka.TopicSliceCompleted)
	if err != nil {
		w.Logger.Error("failed to encode slice-completed event", logging.Err(err))
		return
	}
	if err := w.Producer.Publish(ctx, msg); err != nil {
		w.Logger.Warn("failed to publish slice-completed event", logging.Err(err))
	}
}

// combine runs once the last slice of a job has completed: it reads every
// slice's CSV, sorts and truncates per job.CombineSlices, writes
// log.csv.gz and ligands.pdbqt.gz, uploads both to object storage, sends
// the completion email, and marks the job done — the Go shape of
// main.cpp's phase-2 combine pass (lines ~424-589).
//
// IsJobDone and combine run as two separate steps, so two workers can both
// observe the last slice completing and both enter combine for the same
// job. A Redis mutex serializes that race; a worker that loses the TryLock
// skips the combine (the lock holder's MarkDone makes the job unclaimable,
// so there is nothing left for the loser to do).
func (w *Worker) combine(ctx context.Context, s *repositories.JobSlice) error {
	if w.Locks != nil {
		lock := w.Locks.NewMutex("dock:combine:"+s.JobID, redis.WithLockTTL(5*time.Minute))
		acquired, err := lock.TryLock(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "acquiring combine lock")
		}
		if !acquired {
			return nil
		}
		defer lock.Unlock(ctx)
	}

	var allRows []string
	for i := 0; i < s.NumSlices; i++ {
		path := filepath.Join(s.JobPath, strconv.Itoa(i)+".csv")
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, errors.CodeIOError, "opening slice csv for combine")
		}
		rows, err := job.ReadSliceRows(f)
		f.Close()
		if err != nil {
			return err
		}
		allRows = append(allRows, rows...)
	}

	combined := job.CombineSlices(allRows, s.NumLigands)

	recFile, err := os.Open(filepath.Join(s.JobPath, receptorFile))
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "opening receptor file for combine")
	}
	defer recFile.Close()
	b := box.New(vec3.Vec3{s.CenterX, s.CenterY, s.CenterZ}, vec3.Vec3{s.SizeX, s.SizeY, s.SizeZ}, box.DefaultGranularity)
	rec, err := receptor.Parse(recFile, b)
	if err != nil {
		return err
	}

	headers, err := os.Open(filepath.Join(s.JobPath, headersFile))
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "opening headers.bin for combine")
	}
	defer headers.Close()

	ligandsF, err := os.Open(filepath.Join(s.JobPath, ligandsFile))
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "opening ligands file for combine")
	}
	defer ligandsF.Close()
	ligandsInfo, err := ligandsF.Stat()
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "statting ligands file for combine")
	}

	cache := gridmap.NewCache(b)
	logRows := make([]job.LogRow, 0, len(combined))
	posedLigands := make([]*ligand.Ligand, 0, len(combined))
	posedCoords := make([][]vec3.Vec3, 0, len(combined))

	for _, row := range combined {
		lig, props, err := w.loadLigandByIndex(ligandsF, headers, ligandsInfo.Size(), row.LigandIndex)
		if err != nil {
			return err
		}
		if lig == nil {
			continue
		}

		if err := job.EnsureGridMaps(lig, rec, b, cache, w.SF, w.Pool); err != nil {
			return err
		}
		conf := row.Conformation
		_, _, _, coords, ok := evaluator.Evaluate(lig, &conf, w.SF, b, cache.Grids())
		if !ok {
			continue
		}

		logRows = append(logRows, job.LogRow{SliceRow: row, Properties: props})
		posedLigands = append(posedLigands, lig)
		posedCoords = append(posedCoords, coords)
	}

	logPath := filepath.Join(s.JobPath, "log.csv.gz")
	if err := writeGzip(logPath, func(w io.Writer) error {
		if err := job.WriteLogHeader(w); err != nil {
			return err
		}
		for i, logRow := range logRows {
			if err := job.WriteLogRow(w, logRow, posedLigands[i].NumHeavyAtoms); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := w.uploadJobArtifact(ctx, s.JobID, logPath, "log.csv.gz"); err != nil {
		return err
	}

	posesPath := filepath.Join(s.JobPath, "ligands.pdbqt.gz")
	if err := writeGzip(posesPath, func(w io.Writer) error {
		for i, lig := range posedLigands {
			remark := fmt.Sprintf("idock score: %.3f RF-Score: %.3f pKd", logRows[i].Energy, logRows[i].RFScore)
			if err := job.WriteModel(w, i+1, lig, posedCoords[i], remark); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := w.uploadJobArtifact(ctx, s.JobID, posesPath, "ligands.pdbqt.gz"); err != nil {
		return err
	}

	w.publishJobCompleted(ctx, s, len(combined), logPath, posesPath)

	if w.Notifier != nil && s.Email != "" {
		if err := w.Notifier.Send(notify.JobCompletion{
			Recipient:       s.Email,
			Description:     s.Description,
			Submitted:       s.SubmittedAt,
			Completed:       time.Now().UTC(),
			LigandsSelected: s.NumLigands,
			LigandsDocked:   len(combined),
			LigandsWritten:  len(combined),
			ResultURL:       fmt.Sprintf("https://istar.example.org/idock/iview/?%s", s.JobID),
		}); err != nil {
			w.Logger.Error("failed to send job completion email", logging.Err(err))
		}
	}

	if err := w.Queue.MarkDone(ctx, s.JobID); err != nil {
		return err
	}

	for i := 0; i < s.NumSlices; i++ {
		_ = os.Remove(filepath.Join(s.JobPath, strconv.Itoa(i)+".csv"))
	}
	return nil
}

func (w *Worker) uploadJobArtifact(ctx context.Context, jobID, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "opening artifact for upload")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "statting artifact for upload")
	}
	_, err = w.Objects.UploadStream(ctx, &minio.StreamUploadRequest{
		Bucket:      w.Bucket,
		ObjectKey:   fmt.Sprintf("%s/%s", jobID, objectName),
		Reader:      f,
		Size:        info.Size(),
		ContentType: "application/gzip",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "uploading job artifact")
	}
	return nil
}

func (w *Worker) publishJobCompleted(ctx context.Context, s *repositories.JobSlice, numHits int, logPath, posesPath string) {
	env, err := kafka.NewEventEnvelope(kafka.TopicJobCompleted, "dock-worker", kafka.JobCompletedPayload{
		JobID:       s.JobID,
		NumSlices:   s.NumSlices,
		NumHits:     numHits,
		LogObject:   fmt.Sprintf("%s/log.csv.gz", s.JobID),
		PosesObject: fmt.Sprintf("%s/ligands.pdbqt.gz", s.JobID),
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		w.Logger.Error("failed to build job-completed event", logging.Err(err))
		return
	}
	msg, err := env.ToMessage(kafka.TopicJobCompleted)
	if err != nil {
		w.Logger.Error("failed to encode job-completed event", logging.Err(err))
		return
	}
	if err := w.Producer.Publish(ctx, msg); err != nil {
		w.Logger.Warn("failed to publish job-completed event", logging.Err(err))
	}
}

func writeGzip(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeIOError, "creating gzip output file")
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	if err := fn(gz); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
