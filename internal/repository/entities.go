package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/noah-isme/sma-adp-comments/internal/models"
	"github.com/noah-isme/sma-adp-comments/pkg/consistency"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
)

// ErrCreateEntityAlreadyExists prefixes the identification string of a
// duplicate entity.
const ErrCreateEntityAlreadyExists = "Trying to create a %s that exists: "

const (
	OperationCreate = "create"
	OperationDelete = "delete"
)

// ErrNoSearchIndex is returned by document operations on a store built without an index.
var ErrNoSearchIndex = errors.New("entity store has no search index")

// EntityBackend is the per-entity-type capability an EntityStore is built on.
// Lookup is the oracle for both the existence check and the consistency poll:
// it returns the stored entity matching the attributes' key fields, or nil.
type EntityBackend[A any, E any] interface {
	Lookup(ctx context.Context, attrs A) (*E, error)
	Persist(ctx context.Context, entity *E) error
	Remove(ctx context.Context, entity *E) error
}

// flusher is implemented by backends that buffer writes.
type flusher interface {
	Flush(ctx context.Context) error
}

// SearchIndex is the full text index the store proxies document calls to.
type SearchIndex interface {
	PutDocument(ctx context.Context, indexName string, doc models.SearchDocument) error
	GetDocument(ctx context.Context, indexName, id string) (*models.SearchDocument, error)
	DeleteDocument(ctx context.Context, indexName, id string) error
	DeleteDocuments(ctx context.Context, indexName string, ids []string) error
	SearchDocuments(ctx context.Context, indexName string, query models.SearchQuery) ([]models.ScoredDocument, error)
}

// EventSink receives operational events from the store.
type EventSink interface {
	EntityAlreadyExists(ctx context.Context, entityType, identification string)
	ConsistencyConfirmed(ctx context.Context, operation, entityType string, res consistency.Result)
	ConsistencyTimeout(ctx context.Context, operation, entityType, identification string, res consistency.Result)
}

type nopSink struct{}

func (nopSink) EntityAlreadyExists(context.Context, string, string) {}

func (nopSink) ConsistencyConfirmed(context.Context, string, string, consistency.Result) {}

func (nopSink) ConsistencyTimeout(context.Context, string, string, string, consistency.Result) {}

// EntityStore creates and deletes entities on an eventually consistent
// backend, waiting a bounded time for every write to become visible through
// Lookup. A write that is still invisible when the wait ends is reported to
// the sink and treated as submitted, not failed.
//
// The existence check in Create is not atomic with the write: two concurrent
// creators of the same key can both succeed.
type EntityStore[A models.Attributes[E], E any] struct {
	backend EntityBackend[A, E]
	index   SearchIndex
	poller  *consistency.Poller
	sink    EventSink
}

// NewEntityStore wires a store. index may be nil when the entity is never
// indexed; a nil poller uses the consistency defaults.
func NewEntityStore[A models.Attributes[E], E any](backend EntityBackend[A, E], index SearchIndex, poller *consistency.Poller, sink EventSink) *EntityStore[A, E] {
	if poller == nil {
		poller = consistency.NewPoller(consistency.DefaultMaxWait, consistency.DefaultInterval)
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &EntityStore[A, E]{backend: backend, index: index, poller: poller, sink: sink}
}

// Create sanitises and validates attrs, rejects duplicates, persists the
// entity and waits for it to become visible. The returned entity is nil when
// the wait timed out.
func (s *EntityStore[A, E]) Create(ctx context.Context, attrs A) (*E, error) {
	if isNil(attrs) {
		return nil, appErrors.Clone(appErrors.ErrNilInput, "")
	}
	if err := prepare[E](attrs); err != nil {
		return nil, err
	}

	existing, err := s.backend.Lookup(ctx, attrs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing "+attrs.EntityType())
	}
	if existing != nil {
		s.sink.EntityAlreadyExists(ctx, attrs.EntityType(), attrs.IdentificationString())
		msg := fmt.Sprintf(ErrCreateEntityAlreadyExists, attrs.EntityType()) + attrs.IdentificationString()
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, msg)
	}

	if err := s.persist(ctx, attrs); err != nil {
		return nil, err
	}
	return s.awaitPresence(ctx, attrs), nil
}

// CreateWithoutExistenceCheck behaves like Create but skips the duplicate
// check. Use it only to retry a write whose outcome is unknown.
func (s *EntityStore[A, E]) CreateWithoutExistenceCheck(ctx context.Context, attrs A) error {
	if isNil(attrs) {
		return appErrors.Clone(appErrors.ErrNilInput, "")
	}
	if err := prepare[E](attrs); err != nil {
		return err
	}
	if err := s.persist(ctx, attrs); err != nil {
		return err
	}
	s.awaitPresence(ctx, attrs)
	return nil
}

// Delete removes the entity matching attrs and waits for it to disappear.
// Deleting a missing entity is a no-op.
func (s *EntityStore[A, E]) Delete(ctx context.Context, attrs A) error {
	if isNil(attrs) {
		return appErrors.Clone(appErrors.ErrNilInput, "")
	}

	entity, err := s.backend.Lookup(ctx, attrs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+attrs.EntityType())
	}
	if entity == nil {
		return nil
	}

	if err := s.backend.Remove(ctx, entity); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete "+attrs.EntityType())
	}
	if err := s.flush(ctx); err != nil {
		return err
	}

	res := s.poller.Await(ctx, func(ctx context.Context) (bool, error) {
		found, err := s.backend.Lookup(ctx, attrs)
		if err != nil {
			return false, err
		}
		return found == nil, nil
	})
	s.report(ctx, OperationDelete, attrs, res)
	return nil
}

// GetEntity returns the stored entity matching attrs, or nil.
func (s *EntityStore[A, E]) GetEntity(ctx context.Context, attrs A) (*E, error) {
	if isNil(attrs) {
		return nil, appErrors.Clone(appErrors.ErrNilInput, "")
	}
	return s.backend.Lookup(ctx, attrs)
}

// PutDocument stores doc in the named index.
func (s *EntityStore[A, E]) PutDocument(ctx context.Context, indexName string, doc models.SearchDocument) error {
	if s.index == nil {
		return ErrNoSearchIndex
	}
	return s.index.PutDocument(ctx, indexName, doc)
}

// GetDocument asks the index for a document. The document itself is not
// returned, only whether the index could be reached.
func (s *EntityStore[A, E]) GetDocument(ctx context.Context, indexName, id string) error {
	if s.index == nil {
		return ErrNoSearchIndex
	}
	_, err := s.index.GetDocument(ctx, indexName, id)
	return err
}

// SearchDocuments runs query against the named index.
func (s *EntityStore[A, E]) SearchDocuments(ctx context.Context, indexName string, query models.SearchQuery) ([]models.ScoredDocument, error) {
	if s.index == nil {
		return nil, ErrNoSearchIndex
	}
	return s.index.SearchDocuments(ctx, indexName, query)
}

// DeleteDocument removes one document from the named index.
func (s *EntityStore[A, E]) DeleteDocument(ctx context.Context, indexName, id string) error {
	if s.index == nil {
		return ErrNoSearchIndex
	}
	return s.index.DeleteDocument(ctx, indexName, id)
}

// DeleteDocuments removes several documents from the named index.
func (s *EntityStore[A, E]) DeleteDocuments(ctx context.Context, indexName string, ids []string) error {
	if s.index == nil {
		return ErrNoSearchIndex
	}
	return s.index.DeleteDocuments(ctx, indexName, ids)
}

func (s *EntityStore[A, E]) persist(ctx context.Context, attrs A) error {
	if err := s.backend.Persist(ctx, attrs.ToEntity()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create "+attrs.EntityType())
	}
	return s.flush(ctx)
}

func (s *EntityStore[A, E]) flush(ctx context.Context) error {
	f, ok := s.backend.(flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flush writes")
	}
	return nil
}

func (s *EntityStore[A, E]) awaitPresence(ctx context.Context, attrs A) *E {
	var created *E
	res := s.poller.Await(ctx, func(ctx context.Context) (bool, error) {
		found, err := s.backend.Lookup(ctx, attrs)
		if err != nil {
			return false, err
		}
		created = found
		return found != nil, nil
	})
	s.report(ctx, OperationCreate, attrs, res)
	return created
}

func (s *EntityStore[A, E]) report(ctx context.Context, operation string, attrs A, res consistency.Result) {
	if res.Satisfied {
		s.sink.ConsistencyConfirmed(ctx, operation, attrs.EntityType(), res)
		return
	}
	s.sink.ConsistencyTimeout(ctx, operation, attrs.EntityType(), attrs.IdentificationString(), res)
}

func prepare[E any](attrs models.Attributes[E]) error {
	attrs.SanitizeForSaving()
	if violations := attrs.InvalidityInfo(); len(violations) > 0 {
		return appErrors.Validation(violations)
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
