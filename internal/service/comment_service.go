package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-comments/internal/models"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
	"github.com/noah-isme/sma-adp-comments/pkg/jobs"
	"github.com/noah-isme/sma-adp-comments/pkg/logger"
)

// Index job types.
const (
	JobIndexPut    = "index.put"
	JobIndexDelete = "index.delete"
)

type commentStore interface {
	Create(ctx context.Context, attrs *models.CommentAttributes) (*models.Comment, error)
	Delete(ctx context.Context, attrs *models.CommentAttributes) error
	GetEntity(ctx context.Context, attrs *models.CommentAttributes) (*models.Comment, error)
	PutDocument(ctx context.Context, indexName string, doc models.SearchDocument) error
	DeleteDocument(ctx context.Context, indexName, id string) error
	SearchDocuments(ctx context.Context, indexName string, query models.SearchQuery) ([]models.ScoredDocument, error)
}

type commentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Comment, error)
	ListByCourse(ctx context.Context, courseID string, filter models.CommentFilter) ([]models.Comment, int, error)
	ListByGiver(ctx context.Context, courseID, giverEmail string, filter models.CommentFilter) ([]models.Comment, int, error)
}

type commentDirectory interface {
	Course(ctx context.Context, courseID string) (*models.Course, error)
	Instructor(ctx context.Context, courseID, email string) (*models.Instructor, error)
	Students(ctx context.Context, courseID string, emails []string) (map[string]models.Student, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// CreateCommentRequest is the payload for creating a comment.
type CreateCommentRequest struct {
	CourseID            string     `json:"course_id" validate:"required"`
	GiverEmail          string     `json:"giver_email" validate:"required"`
	RecipientType       string     `json:"recipient_type" validate:"omitempty,oneof=PERSON TEAM SECTION COURSE NONE"`
	Recipients          []string   `json:"recipients" validate:"max=1000"`
	Status              string     `json:"status" validate:"omitempty,oneof=DRAFT FINAL"`
	SendingState        string     `json:"sending_state" validate:"omitempty,oneof=SENT SENDING PENDING"`
	ShowCommentTo       []string   `json:"show_comment_to" validate:"omitempty,dive,oneof=PERSON TEAM SECTION COURSE"`
	ShowGiverNameTo     []string   `json:"show_giver_name_to" validate:"omitempty,dive,oneof=PERSON TEAM SECTION COURSE"`
	ShowRecipientNameTo []string   `json:"show_recipient_name_to" validate:"omitempty,dive,oneof=PERSON TEAM SECTION COURSE"`
	CommentText         string     `json:"comment_text" validate:"required"`
	CreatedAt           *time.Time `json:"created_at"`
}

// SearchCommentsRequest is a free text search over indexed comments.
type SearchCommentsRequest struct {
	Query    string `form:"q" validate:"required"`
	CourseID string `form:"course_id"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=100"`
	// Order replaces relevance ordering with creation time order.
	Order string `form:"order" validate:"omitempty,oneof=asc desc"`
	// Hydrate re-reads every hit from the store so status, sending state and
	// visibility are filled in. Hits deleted since indexing are dropped.
	Hydrate bool `form:"hydrate"`
}

// SearchHit is one search result.
type SearchHit struct {
	Comment *models.CommentAttributes `json:"comment"`
	Score   float64                   `json:"score"`
}

// CommentService orchestrates comment persistence and indexing.
type CommentService struct {
	store     commentStore
	reader    commentReader
	directory commentDirectory
	queue     jobQueue
	indexName string
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCommentService constructs a CommentService. A nil queue indexes inline.
func NewCommentService(store commentStore, reader commentReader, directory commentDirectory, queue jobQueue, indexName string, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if indexName == "" {
		indexName = models.CommentDocumentType
	}
	return &CommentService{
		store:     store,
		reader:    reader,
		directory: directory,
		queue:     queue,
		indexName: indexName,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// SetQueue replaces the indexing queue.
func (s *CommentService) SetQueue(queue jobQueue) {
	s.queue = queue
}

// Create stores a new comment. The returned comment has no ID when the store
// accepted the write but it did not become visible in time.
func (s *CommentService) Create(ctx context.Context, req CreateCommentRequest) (*models.CommentAttributes, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	createdAt := s.now().UTC()
	if req.CreatedAt != nil {
		createdAt = req.CreatedAt.UTC()
	}
	// PostgreSQL keeps microseconds; the key lookup compares timestamps exactly.
	createdAt = createdAt.Truncate(time.Microsecond)

	attrs := models.NewCommentAttributes(req.CourseID, req.GiverEmail, models.RecipientType(req.RecipientType),
		models.NewRecipientSet(req.Recipients...), createdAt, req.CommentText)
	if req.Status != "" {
		attrs.Status = models.CommentStatus(req.Status)
	}
	if req.SendingState != "" {
		attrs.SendingState = models.CommentSendingState(req.SendingState)
	}
	attrs.ShowCommentTo = recipientTypes(req.ShowCommentTo)
	attrs.ShowGiverNameTo = recipientTypes(req.ShowGiverNameTo)
	attrs.ShowRecipientNameTo = recipientTypes(req.ShowRecipientNameTo)

	entity, err := s.store.Create(ctx, attrs)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		// Accepted but not visible yet: the job resolves the id by key once
		// the replica catches up.
		s.dispatch(ctx, jobs.Job{Type: JobIndexPut, Payload: attrs})
		return attrs, nil
	}

	created := models.NewCommentAttributesFromEntity(entity)
	s.dispatch(ctx, jobs.Job{Type: JobIndexPut, Payload: entity.ID})
	return created, nil
}

// Get returns a comment by ID.
func (s *CommentService) Get(ctx context.Context, id int64) (*models.CommentAttributes, error) {
	entity, err := s.reader.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if entity == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
	}
	return models.NewCommentAttributesFromEntity(entity), nil
}

// Delete removes a comment and its search document.
func (s *CommentService) Delete(ctx context.Context, id int64) error {
	attrs, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, attrs); err != nil {
		return err
	}
	s.dispatch(ctx, jobs.Job{Type: JobIndexDelete, Payload: id})
	return nil
}

// ListByCourse returns a page of a course's comments, only those written by
// filter.GiverEmail when it is set.
func (s *CommentService) ListByCourse(ctx context.Context, courseID string, filter models.CommentFilter) ([]*models.CommentAttributes, *models.Pagination, error) {
	var (
		entities []models.Comment
		total    int
		err      error
	)
	if filter.GiverEmail != "" {
		entities, total, err = s.reader.ListByGiver(ctx, courseID, filter.GiverEmail, filter)
	} else {
		entities, total, err = s.reader.ListByCourse(ctx, courseID, filter)
	}
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	comments := make([]*models.CommentAttributes, 0, len(entities))
	for i := range entities {
		comments = append(comments, models.NewCommentAttributesFromEntity(&entities[i]))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return comments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Search runs a free text query against the comment index.
func (s *CommentService) Search(ctx context.Context, req SearchCommentsRequest) ([]SearchHit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid search query")
	}

	text := req.Query
	if req.CourseID != "" {
		text += " " + req.CourseID
	}
	// Hits dropped by the course filter or by hydration must not eat into the
	// limit, so filtered searches fetch every match and truncate afterwards.
	query := models.SearchQuery{Text: text, Limit: req.Limit}
	if req.CourseID != "" || req.Hydrate {
		query.Limit = 0
	}
	results, err := s.store.SearchDocuments(ctx, s.indexName, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search comments")
	}

	hits := make([]SearchHit, 0, len(results))
	for _, result := range results {
		if req.Limit > 0 && len(hits) == req.Limit {
			break
		}
		comment, err := models.CommentFromDocument(result)
		if err != nil {
			logger.WithContext(ctx, s.logger).Warn("skipping malformed search document", zap.String("document_id", result.ID), zap.Error(err))
			continue
		}
		if req.CourseID != "" && comment.CourseID != req.CourseID {
			continue
		}
		if req.Hydrate {
			entity, err := s.reader.FindByID(ctx, *comment.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
			}
			if entity == nil {
				continue
			}
			comment = models.NewCommentAttributesFromEntity(entity)
		}
		hits = append(hits, SearchHit{Comment: comment, Score: result.Score})
	}
	if req.Order != "" {
		sortHitsByCreationTime(hits, req.Order == "desc")
	}
	return hits, nil
}

func sortHitsByCreationTime(hits []SearchHit, newestFirst bool) {
	comments := make([]*models.CommentAttributes, len(hits))
	scores := make(map[*models.CommentAttributes]float64, len(hits))
	for i, hit := range hits {
		comments[i] = hit.Comment
		scores[hit.Comment] = hit.Score
	}
	if newestFirst {
		models.SortCommentsByCreationTimeDescending(comments)
	} else {
		models.SortCommentsByCreationTime(comments)
	}
	for i, comment := range comments {
		hits[i] = SearchHit{Comment: comment, Score: scores[comment]}
	}
}

// HandleIndexJob is the queue handler that keeps the search index in step
// with the store. Put jobs carry either a comment id or, for writes that were
// not visible when accepted, the comment's key fields.
func (s *CommentService) HandleIndexJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobIndexPut:
		switch payload := job.Payload.(type) {
		case int64:
			return s.indexByID(ctx, payload)
		case *models.CommentAttributes:
			return s.indexByKey(ctx, payload)
		}
	case JobIndexDelete:
		if id, ok := job.Payload.(int64); ok {
			return s.store.DeleteDocument(ctx, s.indexName, strconv.FormatInt(id, 10))
		}
	default:
		return fmt.Errorf("job %s: unknown type %q", job.ID, job.Type)
	}
	return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
}

func (s *CommentService) indexByID(ctx context.Context, id int64) error {
	entity, err := s.reader.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if entity == nil {
		// Either deleted already or not replicated yet; a retry settles which.
		return fmt.Errorf("comment %d not visible", id)
	}
	return s.indexEntity(ctx, entity)
}

func (s *CommentService) indexByKey(ctx context.Context, attrs *models.CommentAttributes) error {
	if attrs == nil {
		return fmt.Errorf("index job without comment key")
	}
	entity, err := s.store.GetEntity(ctx, attrs)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("comment %s not visible", attrs.IdentificationString())
	}
	return s.indexEntity(ctx, entity)
}

func (s *CommentService) indexEntity(ctx context.Context, entity *models.Comment) error {
	comment := models.NewCommentAttributesFromEntity(entity)

	course, err := s.directory.Course(ctx, comment.CourseID)
	if err != nil {
		return err
	}
	giver, err := s.directory.Instructor(ctx, comment.CourseID, comment.GiverEmail)
	if err != nil {
		return err
	}
	var students map[string]models.Student
	if comment.RecipientType == models.RecipientPerson {
		if students, err = s.directory.Students(ctx, comment.CourseID, comment.Recipients.Sorted()); err != nil {
			return err
		}
	}

	doc, err := comment.ToDocument(course, giver, students)
	if err != nil {
		return err
	}
	return s.store.PutDocument(ctx, s.indexName, doc)
}

// dispatch hands an index job to the queue, or runs it inline without one.
// Indexing failures never fail the request.
func (s *CommentService) dispatch(ctx context.Context, job jobs.Job) {
	log := logger.WithContext(ctx, s.logger)
	if s.queue != nil {
		if err := s.queue.Enqueue(job); err != nil {
			log.Warn("failed to enqueue index job", zap.String("type", job.Type), zap.Error(err))
		}
		return
	}
	if err := s.HandleIndexJob(ctx, job); err != nil {
		log.Warn("inline indexing failed", zap.String("type", job.Type), zap.Error(err))
	}
}

func recipientTypes(raw []string) []models.RecipientType {
	if raw == nil {
		return nil
	}
	out := make([]models.RecipientType, len(raw))
	for i, r := range raw {
		out[i] = models.RecipientType(r)
	}
	return out
}
