package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-comments/internal/models"
	"github.com/noah-isme/sma-adp-comments/pkg/consistency"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
)

type pendingWrite struct {
	row       *models.Comment
	remaining int
	deleted   bool
}

// laggyBackend only exposes a write after lag further lookups, mimicking a
// read replica that trails the primary.
type laggyBackend struct {
	mu        sync.Mutex
	lag       int
	nextID    int64
	visible   map[string]*models.Comment
	pending   map[string]*pendingWrite
	persisted int
	removed   int
	flushed   int
	lookups   int
	lookupErr error
	// afterWrite runs once a persist or remove has been accepted.
	afterWrite func()
}

func newLaggyBackend(lag int) *laggyBackend {
	return &laggyBackend{
		lag:     lag,
		visible: make(map[string]*models.Comment),
		pending: make(map[string]*pendingWrite),
	}
}

func entityKey(c *models.Comment) string {
	return strings.Join([]string{c.CourseID, c.GiverEmail, string(c.RecipientType), strings.Join(c.Recipients, ";"), c.CreatedAt.UTC().String()}, "|")
}

func (b *laggyBackend) Lookup(ctx context.Context, attrs *models.CommentAttributes) (*models.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups++
	if b.lookupErr != nil {
		return nil, b.lookupErr
	}
	// database/sql refuses to run queries on a cancelled context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for key, p := range b.pending {
		p.remaining--
		if p.remaining > 0 {
			continue
		}
		if p.deleted {
			delete(b.visible, key)
		} else {
			b.visible[key] = p.row
		}
		delete(b.pending, key)
	}
	row, ok := b.visible[entityKey(attrs.ToEntity())]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (b *laggyBackend) Persist(ctx context.Context, entity *models.Comment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	entity.ID = b.nextID
	b.persisted++
	b.pending[entityKey(entity)] = &pendingWrite{row: entity, remaining: b.lag}
	if b.afterWrite != nil {
		b.afterWrite()
	}
	return nil
}

func (b *laggyBackend) Remove(ctx context.Context, entity *models.Comment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed++
	b.pending[entityKey(entity)] = &pendingWrite{row: entity, remaining: b.lag, deleted: true}
	if b.afterWrite != nil {
		b.afterWrite()
	}
	return nil
}

func (b *laggyBackend) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed++
	return nil
}

type sinkEvent struct {
	kind      string
	operation string
	ident     string
	res       consistency.Result
}

type recordingSink struct {
	events []sinkEvent
}

func (s *recordingSink) EntityAlreadyExists(ctx context.Context, entityType, identification string) {
	s.events = append(s.events, sinkEvent{kind: "exists", ident: identification})
}

func (s *recordingSink) ConsistencyConfirmed(ctx context.Context, operation, entityType string, res consistency.Result) {
	s.events = append(s.events, sinkEvent{kind: "confirmed", operation: operation, res: res})
}

func (s *recordingSink) ConsistencyTimeout(ctx context.Context, operation, entityType, identification string, res consistency.Result) {
	s.events = append(s.events, sinkEvent{kind: "timeout", operation: operation, ident: identification, res: res})
}

func (s *recordingSink) last() sinkEvent {
	if len(s.events) == 0 {
		return sinkEvent{}
	}
	return s.events[len(s.events)-1]
}

type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

// instantPoller allows ten re-checks without sleeping.
func instantPoller() *consistency.Poller {
	return consistency.NewPoller(time.Second, 100*time.Millisecond, consistency.WithTimer(func() backoff.Timer {
		return &instantTimer{}
	}))
}

type commentStore = EntityStore[*models.CommentAttributes, models.Comment]

func newTestStore(backend *laggyBackend, index SearchIndex) (*commentStore, *recordingSink) {
	sink := &recordingSink{}
	store := NewEntityStore[*models.CommentAttributes, models.Comment](backend, index, instantPoller(), sink)
	return store, sink
}

var createdAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func validComment() *models.CommentAttributes {
	return models.NewCommentAttributes("CS101", "prof@uni.edu", models.RecipientPerson,
		models.NewRecipientSet("a@x.com", "b@x.com"), createdAt, "Good work")
}

func TestEntityStoreCreateWaitsForVisibility(t *testing.T) {
	backend := newLaggyBackend(3)
	store, sink := newTestStore(backend, nil)

	created, err := store.Create(context.Background(), validComment())
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, 1, backend.persisted)
	assert.Equal(t, 1, backend.flushed)

	ev := sink.last()
	assert.Equal(t, "confirmed", ev.kind)
	assert.Equal(t, OperationCreate, ev.operation)
	assert.Equal(t, 3, ev.res.Attempts)

	found, err := store.GetEntity(context.Background(), validComment())
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestEntityStoreCreateTimeoutIsNotAnError(t *testing.T) {
	backend := newLaggyBackend(50)
	store, sink := newTestStore(backend, nil)

	created, err := store.Create(context.Background(), validComment())
	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Equal(t, 1, backend.persisted)

	ev := sink.last()
	assert.Equal(t, "timeout", ev.kind)
	assert.Equal(t, OperationCreate, ev.operation)
	assert.Equal(t, time.Second, ev.res.Waited)
	assert.Contains(t, ev.ident, "course=CS101")
}

func TestEntityStoreCreateSurvivesCallerCancellation(t *testing.T) {
	backend := newLaggyBackend(2)
	store, sink := newTestStore(backend, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend.afterWrite = cancel

	created, err := store.Create(ctx, validComment())
	require.NoError(t, err)
	require.NotNil(t, created)

	ev := sink.last()
	assert.Equal(t, "confirmed", ev.kind)
	assert.Equal(t, 2, ev.res.Attempts)
	assert.NoError(t, ev.res.LastErr)
}

func TestEntityStoreDeleteSurvivesCallerCancellation(t *testing.T) {
	backend := newLaggyBackend(0)
	store, sink := newTestStore(backend, nil)
	_, err := store.Create(context.Background(), validComment())
	require.NoError(t, err)

	backend.lag = 2
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend.afterWrite = cancel

	require.NoError(t, store.Delete(ctx, validComment()))
	assert.Equal(t, 1, backend.removed)

	ev := sink.last()
	assert.Equal(t, "confirmed", ev.kind)
	assert.Equal(t, OperationDelete, ev.operation)
	assert.Equal(t, 2, ev.res.Attempts)
}

func TestEntityStoreCreateRejectsInvalid(t *testing.T) {
	backend := newLaggyBackend(0)
	store, _ := newTestStore(backend, nil)

	attrs := models.NewCommentAttributes("CS 101", "prof@uni.edu", models.RecipientPerson,
		models.NewRecipientSet("not-an-email"), createdAt, "x")
	_, err := store.Create(context.Background(), attrs)

	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	appErr := appErrors.FromError(err)
	assert.Len(t, appErr.Details, 2)
	assert.Zero(t, backend.persisted)
	assert.Zero(t, backend.lookups)
}

func TestEntityStoreCreateDuplicate(t *testing.T) {
	backend := newLaggyBackend(0)
	store, sink := newTestStore(backend, nil)

	_, err := store.Create(context.Background(), validComment())
	require.NoError(t, err)

	_, err = store.Create(context.Background(), validComment())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyExists)
	assert.True(t, strings.HasPrefix(appErrors.FromError(err).Message, "Trying to create a Comment that exists: "))
	assert.Equal(t, 1, backend.persisted)
	assert.Equal(t, "exists", sink.last().kind)
}

func TestEntityStoreCreateSanitisesBeforePersisting(t *testing.T) {
	backend := newLaggyBackend(0)
	store, _ := newTestStore(backend, nil)

	attrs := validComment()
	attrs.CommentText = " <b>hi</b> "
	created, err := store.Create(context.Background(), attrs)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "&lt;b&gt;hi&lt;&#x2f;b&gt;", created.CommentText)
}

func TestEntityStoreNilInput(t *testing.T) {
	store, _ := newTestStore(newLaggyBackend(0), nil)
	ctx := context.Background()

	_, err := store.Create(ctx, nil)
	assert.ErrorIs(t, err, appErrors.ErrNilInput)
	assert.ErrorIs(t, store.CreateWithoutExistenceCheck(ctx, nil), appErrors.ErrNilInput)
	assert.ErrorIs(t, store.Delete(ctx, nil), appErrors.ErrNilInput)
	_, err = store.GetEntity(ctx, nil)
	assert.ErrorIs(t, err, appErrors.ErrNilInput)
}

func TestEntityStoreCreateWithoutExistenceCheck(t *testing.T) {
	backend := newLaggyBackend(0)
	store, _ := newTestStore(backend, nil)
	ctx := context.Background()

	require.NoError(t, store.CreateWithoutExistenceCheck(ctx, validComment()))
	require.NoError(t, store.CreateWithoutExistenceCheck(ctx, validComment()))
	assert.Equal(t, 2, backend.persisted)

	bad := validComment()
	bad.GiverEmail = "nope"
	assert.ErrorIs(t, store.CreateWithoutExistenceCheck(ctx, bad), appErrors.ErrValidation)
	assert.Equal(t, 2, backend.persisted)
}

func TestEntityStoreDeleteMissingIsNoop(t *testing.T) {
	backend := newLaggyBackend(0)
	store, sink := newTestStore(backend, nil)

	require.NoError(t, store.Delete(context.Background(), validComment()))
	assert.Zero(t, backend.removed)
	assert.Empty(t, sink.events)
}

func TestEntityStoreDeleteWaitsForAbsence(t *testing.T) {
	backend := newLaggyBackend(2)
	store, sink := newTestStore(backend, nil)
	ctx := context.Background()

	_, err := store.Create(ctx, validComment())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, validComment()))
	assert.Equal(t, 1, backend.removed)
	assert.Equal(t, "confirmed", sink.last().kind)
	assert.Equal(t, OperationDelete, sink.last().operation)

	found, err := store.GetEntity(ctx, validComment())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestEntityStoreDeleteTimeoutIsNotAnError(t *testing.T) {
	backend := newLaggyBackend(0)
	store, sink := newTestStore(backend, nil)
	ctx := context.Background()

	_, err := store.Create(ctx, validComment())
	require.NoError(t, err)

	backend.lag = 100
	require.NoError(t, store.Delete(ctx, validComment()))
	assert.Equal(t, "timeout", sink.last().kind)
	assert.Equal(t, OperationDelete, sink.last().operation)
}

func TestEntityStoreLookupFailure(t *testing.T) {
	backend := newLaggyBackend(0)
	backend.lookupErr = errors.New("replica down")
	store, _ := newTestStore(backend, nil)

	_, err := store.Create(context.Background(), validComment())
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Zero(t, backend.persisted)

	err = store.Delete(context.Background(), validComment())
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

type recordingIndex struct {
	puts    []models.SearchDocument
	gets    []string
	deletes []string
	results []models.ScoredDocument
	err     error
}

func (r *recordingIndex) PutDocument(ctx context.Context, indexName string, doc models.SearchDocument) error {
	r.puts = append(r.puts, doc)
	return r.err
}

func (r *recordingIndex) GetDocument(ctx context.Context, indexName, id string) (*models.SearchDocument, error) {
	r.gets = append(r.gets, id)
	return nil, r.err
}

func (r *recordingIndex) DeleteDocument(ctx context.Context, indexName, id string) error {
	r.deletes = append(r.deletes, id)
	return r.err
}

func (r *recordingIndex) DeleteDocuments(ctx context.Context, indexName string, ids []string) error {
	r.deletes = append(r.deletes, ids...)
	return r.err
}

func (r *recordingIndex) SearchDocuments(ctx context.Context, indexName string, query models.SearchQuery) ([]models.ScoredDocument, error) {
	return r.results, r.err
}

func TestEntityStoreDocumentPassThrough(t *testing.T) {
	index := &recordingIndex{results: []models.ScoredDocument{{SearchDocument: models.NewSearchDocument("1"), Score: 2}}}
	store, _ := newTestStore(newLaggyBackend(0), index)
	ctx := context.Background()

	require.NoError(t, store.PutDocument(ctx, "comment", models.NewSearchDocument("1")))
	require.NoError(t, store.GetDocument(ctx, "comment", "1"))
	require.NoError(t, store.DeleteDocument(ctx, "comment", "1"))
	require.NoError(t, store.DeleteDocuments(ctx, "comment", []string{"2", "3"}))
	hits, err := store.SearchDocuments(ctx, "comment", models.SearchQuery{Text: "good"})
	require.NoError(t, err)

	assert.Len(t, index.puts, 1)
	assert.Equal(t, []string{"1"}, index.gets)
	assert.Equal(t, []string{"1", "2", "3"}, index.deletes)
	assert.Len(t, hits, 1)

	index.err = errors.New("index unavailable")
	assert.ErrorIs(t, store.PutDocument(ctx, "comment", models.NewSearchDocument("1")), index.err)
}

func TestEntityStoreWithoutIndex(t *testing.T) {
	store, _ := newTestStore(newLaggyBackend(0), nil)
	ctx := context.Background()

	assert.ErrorIs(t, store.PutDocument(ctx, "comment", models.NewSearchDocument("1")), ErrNoSearchIndex)
	_, err := store.SearchDocuments(ctx, "comment", models.SearchQuery{})
	assert.ErrorIs(t, err, ErrNoSearchIndex)
}
