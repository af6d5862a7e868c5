package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-comments/internal/models"
)

const commentColumns = `id, course_id, giver_email, recipient_type, recipients, status, sending_state,
        show_comment_to, show_giver_name_to, show_recipient_name_to, comment_text, created_at`

// QueryObserver receives the duration of every database query.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// CommentRepository persists comments. Writes go to the primary pool while
// lookups are served by the replica, so a fresh write can be invisible to
// Lookup for a while.
type CommentRepository struct {
	primary  *sqlx.DB
	replica  *sqlx.DB
	observer QueryObserver
}

// NewCommentRepository constructs a CommentRepository. A nil replica reads
// from the primary.
func NewCommentRepository(primary, replica *sqlx.DB) *CommentRepository {
	if replica == nil {
		replica = primary
	}
	return &CommentRepository{primary: primary, replica: replica}
}

// WithObserver attaches a query timing observer.
func (r *CommentRepository) WithObserver(observer QueryObserver) *CommentRepository {
	r.observer = observer
	return r
}

// Lookup finds the comment by ID when attrs carries one, otherwise by its key
// fields. It returns nil when nothing matches.
func (r *CommentRepository) Lookup(ctx context.Context, attrs *models.CommentAttributes) (*models.Comment, error) {
	if attrs.ID != nil {
		return r.FindByID(ctx, *attrs.ID)
	}

	key := attrs.ToEntity()
	query := `SELECT ` + commentColumns + `
        FROM comments
        WHERE course_id = $1 AND giver_email = $2 AND recipient_type = $3 AND recipients = $4 AND created_at = $5
        LIMIT 1`
	defer r.observe("comments.lookup", time.Now())

	var comment models.Comment
	if err := r.replica.GetContext(ctx, &comment, query, key.CourseID, key.GiverEmail, key.RecipientType, key.Recipients, key.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup comment: %w", err)
	}
	return &comment, nil
}

// Persist inserts the comment on the primary and stores the assigned ID on it.
func (r *CommentRepository) Persist(ctx context.Context, comment *models.Comment) error {
	const query = `INSERT INTO comments (course_id, giver_email, recipient_type, recipients, status, sending_state,
        show_comment_to, show_giver_name_to, show_recipient_name_to, comment_text, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id`
	defer r.observe("comments.insert", time.Now())

	err := r.primary.QueryRowxContext(ctx, query,
		comment.CourseID,
		comment.GiverEmail,
		comment.RecipientType,
		comment.Recipients,
		comment.Status,
		comment.SendingState,
		comment.ShowCommentTo,
		comment.ShowGiverNameTo,
		comment.ShowRecipientNameTo,
		comment.CommentText,
		comment.CreatedAt,
	).Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// Remove deletes the comment row by ID.
func (r *CommentRepository) Remove(ctx context.Context, comment *models.Comment) error {
	defer r.observe("comments.delete", time.Now())
	if _, err := r.primary.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, comment.ID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// FindByID fetches a comment from the replica. It returns nil when absent.
func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`
	defer r.observe("comments.find_by_id", time.Now())

	var comment models.Comment
	if err := r.replica.GetContext(ctx, &comment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &comment, nil
}

// List returns a page of comments matching the filter together with the total count.
func (r *CommentRepository) List(ctx context.Context, filter models.CommentFilter) ([]models.Comment, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.GiverEmail != "" {
		conditions = append(conditions, fmt.Sprintf("giver_email = $%d", len(args)+1))
		args = append(args, filter.GiverEmail)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM comments %s ORDER BY created_at %s, id %s LIMIT %d OFFSET %d`, commentColumns, where, order, order, size, offset)
	defer r.observe("comments.list", time.Now())

	var comments []models.Comment
	if err := r.replica.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}

	var total int
	if err := r.replica.GetContext(ctx, &total, "SELECT COUNT(*) FROM comments "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	return comments, total, nil
}

// ListByCourse returns a page of comments for one course.
func (r *CommentRepository) ListByCourse(ctx context.Context, courseID string, filter models.CommentFilter) ([]models.Comment, int, error) {
	filter.CourseID = courseID
	return r.List(ctx, filter)
}

// ListByGiver returns a page of comments a giver wrote in one course.
func (r *CommentRepository) ListByGiver(ctx context.Context, courseID, giverEmail string, filter models.CommentFilter) ([]models.Comment, int, error) {
	filter.CourseID = courseID
	filter.GiverEmail = giverEmail
	return r.List(ctx, filter)
}

func (r *CommentRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}
