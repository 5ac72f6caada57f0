package syncengine

import (
	"context"

	"github.com/shuttertrack/shuttertrack/internal/models"
	"github.com/shuttertrack/shuttertrack/internal/remote"
	"github.com/shuttertrack/shuttertrack/internal/store"
	"go.uber.org/zap"
)

// Engines bundles one engine per entity kind.
type Engines struct {
	Jobs     *Engine[*models.Job]
	JobTypes *Engine[*models.JobType]
}

// NewEngines wires the local SQLite store and the remote client into engines
// for both entity kinds.
func NewEngines(localStore *store.Store, remoteClient *remote.Client, log *zap.Logger) *Engines {
	return &Engines{
		Jobs: NewEngine[*models.Job]("job",
			jobsLocal{store: localStore}, remoteClient.Jobs(), log),
		JobTypes: NewEngine[*models.JobType]("job_type",
			jobTypesLocal{store: localStore}, remoteClient.JobTypes(), log),
	}
}

// SyncAll reconciles both collections and returns the combined result.
// Job types go first so pulled jobs can reference them.
func (e *Engines) SyncAll(ctx context.Context) (Result, error) {
	typeResult, err := e.JobTypes.Sync(ctx)
	if err != nil {
		return typeResult, err
	}
	jobResult, err := e.Jobs.Sync(ctx)
	jobResult.Pulled += typeResult.Pulled
	jobResult.Created += typeResult.Created
	jobResult.Updated += typeResult.Updated
	jobResult.Skipped += typeResult.Skipped
	return jobResult, err
}

// WaitMirrors drains in-flight mirror writes for both engines.
func (e *Engines) WaitMirrors(ctx context.Context) error {
	if err := e.JobTypes.WaitMirrors(ctx); err != nil {
		return err
	}
	return e.Jobs.WaitMirrors(ctx)
}

type jobsLocal struct {
	store *store.Store
}

func (l jobsLocal) List(ctx context.Context) ([]*models.Job, error) {
	return l.store.ListJobs(ctx)
}

func (l jobsLocal) Insert(ctx context.Context, job *models.Job) (*models.Job, error) {
	copied := *job
	copied.LocalID = ""
	return l.store.InsertJob(ctx, &copied)
}

func (l jobsLocal) SetRemoteID(ctx context.Context, job *models.Job, remoteID string) error {
	return l.store.SetJobRemoteID(ctx, job.LocalID, remoteID)
}

func (l jobsLocal) Delete(ctx context.Context, job *models.Job) error {
	return l.store.DeleteJob(ctx, job.LocalID)
}

type jobTypesLocal struct {
	store *store.Store
}

func (l jobTypesLocal) List(ctx context.Context) ([]*models.JobType, error) {
	return l.store.ListJobTypes(ctx)
}

func (l jobTypesLocal) Insert(ctx context.Context, jobType *models.JobType) (*models.JobType, error) {
	copied := *jobType
	copied.LocalID = ""
	return l.store.InsertJobType(ctx, &copied)
}

func (l jobTypesLocal) SetRemoteID(ctx context.Context, jobType *models.JobType, remoteID string) error {
	return l.store.SetJobTypeRemoteID(ctx, jobType.LocalID, remoteID)
}

func (l jobTypesLocal) Delete(ctx context.Context, jobType *models.JobType) error {
	return l.store.DeleteJobType(ctx, jobType.LocalID)
}
