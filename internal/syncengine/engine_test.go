package syncengine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shuttertrack/shuttertrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLocal is an in-memory LocalStore[*models.Job].
type fakeLocal struct {
	mu        sync.Mutex
	entities  []*models.Job
	failNames map[string]bool // ClientName -> fail inserts
}

func (l *fakeLocal) List(context.Context) ([]*models.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.Job, len(l.entities))
	copy(out, l.entities)
	return out, nil
}

func (l *fakeLocal) Insert(_ context.Context, job *models.Job) (*models.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNames[job.ClientName] {
		return nil, fmt.Errorf("insert rejected")
	}
	copied := *job
	copied.LocalID = uuid.NewString()
	l.entities = append(l.entities, &copied)
	return &copied, nil
}

func (l *fakeLocal) SetRemoteID(_ context.Context, job *models.Job, remoteID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entity := range l.entities {
		if entity.LocalID == job.LocalID {
			entity.RemoteID = remoteID
			return nil
		}
	}
	return fmt.Errorf("not found")
}

func (l *fakeLocal) Delete(_ context.Context, job *models.Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, entity := range l.entities {
		if entity.LocalID == job.LocalID {
			l.entities = append(l.entities[:i], l.entities[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("not found")
}

// fakeRemote is an in-memory RemoteStore[*models.Job].
type fakeRemote struct {
	mu        sync.Mutex
	entities  map[string]*models.Job
	nextID    int
	failNames map[string]bool // ClientName -> fail create/update
	deleteErr error

	updates  []string
	deletes  []string
	upserted chan string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{entities: map[string]*models.Job{}}
}

func (r *fakeRemote) put(job *models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.entities[job.RemoteID] = &copied
}

func (r *fakeRemote) List(context.Context) ([]*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Job
	for _, entity := range r.entities {
		copied := *entity
		copied.LocalID = ""
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeRemote) Create(_ context.Context, job *models.Job) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNames[job.ClientName] {
		return "", fmt.Errorf("create rejected")
	}
	r.nextID++
	remoteID := fmt.Sprintf("remote-%d", r.nextID)
	copied := *job
	copied.RemoteID = remoteID
	r.entities[remoteID] = &copied
	if r.upserted != nil {
		r.upserted <- remoteID
	}
	return remoteID, nil
}

func (r *fakeRemote) Update(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNames[job.ClientName] {
		return fmt.Errorf("update rejected")
	}
	copied := *job
	copied.LocalID = ""
	r.entities[job.RemoteID] = &copied
	r.updates = append(r.updates, job.RemoteID)
	if r.upserted != nil {
		r.upserted <- job.RemoteID
	}
	return nil
}

func (r *fakeRemote) Delete(_ context.Context, remoteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.entities, remoteID)
	r.deletes = append(r.deletes, remoteID)
	return nil
}

func newTestEngine(local *fakeLocal, remote *fakeRemote) *Engine[*models.Job] {
	return NewEngine[*models.Job]("job", local, remote, zap.NewNop())
}

func job(clientName, remoteID string, updatedAt time.Time) *models.Job {
	return &models.Job{
		LocalID:    uuid.NewString(),
		RemoteID:   remoteID,
		ClientName: clientName,
		Status:     models.JobStatusInquiry,
		UpdatedAt:  updatedAt,
	}
}

func TestPull_NoDuplication(t *testing.T) {
	stamp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	existing := job("Correlated", "A", stamp)

	local := &fakeLocal{entities: []*models.Job{existing}}
	remote := newFakeRemote()
	remote.put(job("Correlated", "A", stamp))
	remote.put(job("Remote only", "B", stamp))

	result, err := newTestEngine(local, remote).Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pulled)
	assert.Zero(t, result.Skipped)

	entities, _ := local.List(context.Background())
	require.Len(t, entities, 2)
	// The pre-existing A-correlated entity is untouched.
	assert.Same(t, existing, entities[0])
	assert.Equal(t, "B", entities[1].RemoteID)
	assert.NotEmpty(t, entities[1].LocalID, "pulled copy gets a fresh local key")
}

func TestPull_SecondRunIsIdempotent(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.put(job("One", "A", time.Now()))

	engine := newTestEngine(local, remote)
	first, err := engine.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Pulled)

	second, err := engine.Pull(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Pulled)

	entities, _ := local.List(context.Background())
	assert.Len(t, entities, 1)
}

func TestPull_InsertFailureSkipsEntity(t *testing.T) {
	local := &fakeLocal{failNames: map[string]bool{"Poisoned": true}}
	remote := newFakeRemote()
	remote.put(job("Poisoned", "A", time.Now()))
	remote.put(job("Healthy", "B", time.Now()))

	result, err := newTestEngine(local, remote).Pull(context.Background())
	require.NoError(t, err, "per-entity failures must not abort the batch")
	assert.Equal(t, 1, result.Pulled)
	assert.Equal(t, 1, result.Skipped)
}

func TestPushAll_CreatesLocalOnlyAndWritesBackRemoteID(t *testing.T) {
	localOnly := job("Fresh", "", time.Now())
	local := &fakeLocal{entities: []*models.Job{localOnly}}
	remote := newFakeRemote()

	result, err := newTestEngine(local, remote).PushAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	assert.Equal(t, "remote-1", localOnly.RemoteID, "provider key written back onto the local entity")
	assert.Contains(t, remote.entities, "remote-1")
}

func TestPushAll_LocalWins(t *testing.T) {
	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	localCopy := job("Local truth", "A", t1)
	localCopy.Notes = "edited offline"
	local := &fakeLocal{entities: []*models.Job{localCopy}}

	remote := newFakeRemote()
	stale := job("Stale remote", "A", t2)
	remote.put(stale)

	result, err := newTestEngine(local, remote).PushAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Created)

	want := *localCopy
	want.LocalID = ""
	if diff := cmp.Diff(&want, remote.entities["A"]); diff != "" {
		t.Errorf("remote record not overwritten with local fields (-want +got):\n%s", diff)
	}
}

func TestPushAll_NoDivergenceNoUpdate(t *testing.T) {
	stamp := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	local := &fakeLocal{entities: []*models.Job{job("Same", "A", stamp)}}
	remote := newFakeRemote()
	remote.put(job("Same", "A", stamp))

	result, err := newTestEngine(local, remote).PushAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Updated)
	assert.Empty(t, remote.updates)
}

func TestPushAll_RemoteOnlyLeftUntouched(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.put(job("Remote only", "Z", time.Now()))

	result, err := newTestEngine(local, remote).PushAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Created+result.Updated+result.Skipped)
	assert.Contains(t, remote.entities, "Z", "no propagation of remote-only deletions")
}

func TestPushAll_FailureIsolation(t *testing.T) {
	bad := job("Doomed", "", time.Now())
	good := job("Fine", "", time.Now())
	local := &fakeLocal{entities: []*models.Job{bad, good}}
	remote := newFakeRemote()
	remote.failNames = map[string]bool{"Doomed": true}

	result, err := newTestEngine(local, remote).PushAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.NotEmpty(t, good.RemoteID)
	assert.Empty(t, bad.RemoteID)
}

func TestDelete_LocalAuthoritative(t *testing.T) {
	entity := job("Doomed", "A", time.Now())
	local := &fakeLocal{entities: []*models.Job{entity}}
	remote := newFakeRemote()
	remote.put(entity)

	require.NoError(t, newTestEngine(local, remote).Delete(context.Background(), entity))

	entities, _ := local.List(context.Background())
	assert.Empty(t, entities)
	assert.NotContains(t, remote.entities, "A")
}

func TestDelete_RemoteFailureDoesNotRollBack(t *testing.T) {
	entity := job("Doomed", "A", time.Now())
	local := &fakeLocal{entities: []*models.Job{entity}}
	remote := newFakeRemote()
	remote.put(entity)
	remote.deleteErr = fmt.Errorf("remote store down")

	err := newTestEngine(local, remote).Delete(context.Background(), entity)
	require.NoError(t, err, "local delete is authoritative")

	entities, _ := local.List(context.Background())
	assert.Empty(t, entities)
}

func TestDelete_LocalOnlySkipsRemote(t *testing.T) {
	entity := job("Never pushed", "", time.Now())
	local := &fakeLocal{entities: []*models.Job{entity}}
	remote := newFakeRemote()

	require.NoError(t, newTestEngine(local, remote).Delete(context.Background(), entity))
	assert.Empty(t, remote.deletes)
}

func TestSync_PullThenPush(t *testing.T) {
	stamp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	local := &fakeLocal{entities: []*models.Job{
		job("Local draft one", "", stamp),
		job("Local draft two", "", stamp),
	}}
	remote := newFakeRemote()
	remote.put(job("Cloud booking", "A", stamp))

	result, err := newTestEngine(local, remote).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pulled)
	assert.Equal(t, 2, result.Created)
	assert.Zero(t, result.Skipped)

	entities, _ := local.List(context.Background())
	assert.Len(t, entities, 3)
	for _, entity := range entities {
		assert.NotEmpty(t, entity.RemoteID, "every local entity acquired a remote id")
	}
}

func TestMirrorUpsert_DoesNotBlockAndWritesBack(t *testing.T) {
	entity := job("Mirrored", "", time.Now())
	local := &fakeLocal{entities: []*models.Job{entity}}
	remote := newFakeRemote()
	remote.upserted = make(chan string, 1)

	newTestEngine(local, remote).MirrorUpsert(entity)

	select {
	case remoteID := <-remote.upserted:
		assert.Equal(t, "remote-1", remoteID)
	case <-time.After(5 * time.Second):
		t.Fatal("mirror upsert never reached the remote store")
	}
}
