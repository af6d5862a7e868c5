package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-comments/pkg/sanitizer"
	"github.com/noah-isme/sma-adp-comments/pkg/validation"
)

// CommentStatus tracks whether a comment is still being drafted.
type CommentStatus string

const (
	CommentStatusDraft CommentStatus = "DRAFT"
	CommentStatusFinal CommentStatus = "FINAL"
)

// CommentSendingState tracks notification delivery for a comment.
type CommentSendingState string

const (
	CommentSendingStateSent    CommentSendingState = "SENT"
	CommentSendingStateSending CommentSendingState = "SENDING"
	CommentSendingStatePending CommentSendingState = "PENDING"
)

const commentEntityType = "Comment"

var fieldValidator = validation.NewFieldValidator(nil)

// Comment is the row stored in the comments table.
type Comment struct {
	ID                  int64                `db:"id" json:"id"`
	CourseID            string               `db:"course_id" json:"course_id"`
	GiverEmail          string               `db:"giver_email" json:"giver_email"`
	RecipientType       RecipientType        `db:"recipient_type" json:"recipient_type"`
	Recipients          pq.StringArray       `db:"recipients" json:"recipients"`
	Status              CommentStatus        `db:"status" json:"status"`
	SendingState        *CommentSendingState `db:"sending_state" json:"sending_state,omitempty"`
	ShowCommentTo       pq.StringArray       `db:"show_comment_to" json:"show_comment_to"`
	ShowGiverNameTo     pq.StringArray       `db:"show_giver_name_to" json:"show_giver_name_to"`
	ShowRecipientNameTo pq.StringArray       `db:"show_recipient_name_to" json:"show_recipient_name_to"`
	CommentText         string               `db:"comment_text" json:"comment_text"`
	CreatedAt           time.Time            `db:"created_at" json:"created_at"`
}

// CommentAttributes is the validated, in-memory form of a course comment.
type CommentAttributes struct {
	// ID is assigned by the store and stays nil until the comment is persisted.
	ID                  *int64              `json:"id,omitempty"`
	CourseID            string              `json:"course_id"`
	GiverEmail          string              `json:"giver_email"`
	RecipientType       RecipientType       `json:"recipient_type"`
	Recipients          RecipientSet        `json:"recipients"`
	Status              CommentStatus       `json:"status,omitempty"`
	SendingState        CommentSendingState `json:"sending_state,omitempty"`
	ShowCommentTo       []RecipientType     `json:"show_comment_to,omitempty"`
	ShowGiverNameTo     []RecipientType     `json:"show_giver_name_to,omitempty"`
	ShowRecipientNameTo []RecipientType     `json:"show_recipient_name_to,omitempty"`
	CommentText         string              `json:"comment_text"`
	CreatedAt           time.Time           `json:"created_at"`
}

// NewCommentAttributes builds a final, sent comment. An empty recipient type
// defaults to PERSON.
func NewCommentAttributes(courseID, giverEmail string, recipientType RecipientType, recipients RecipientSet, createdAt time.Time, text string) *CommentAttributes {
	if recipientType == "" {
		recipientType = RecipientPerson
	}
	if recipients == nil {
		recipients = NewRecipientSet()
	}
	return &CommentAttributes{
		CourseID:      courseID,
		GiverEmail:    giverEmail,
		RecipientType: recipientType,
		Recipients:    recipients,
		Status:        CommentStatusFinal,
		SendingState:  CommentSendingStateSent,
		CommentText:   text,
		CreatedAt:     createdAt,
	}
}

// NewCommentAttributesFromEntity converts a stored row back into attributes.
func NewCommentAttributesFromEntity(c *Comment) *CommentAttributes {
	id := c.ID
	sending := CommentSendingStateSent
	if c.SendingState != nil {
		sending = *c.SendingState
	}
	return &CommentAttributes{
		ID:                  &id,
		CourseID:            c.CourseID,
		GiverEmail:          c.GiverEmail,
		RecipientType:       c.RecipientType,
		Recipients:          NewRecipientSet(c.Recipients...),
		Status:              c.Status,
		SendingState:        sending,
		ShowCommentTo:       toRecipientTypes(c.ShowCommentTo),
		ShowGiverNameTo:     toRecipientTypes(c.ShowGiverNameTo),
		ShowRecipientNameTo: toRecipientTypes(c.ShowRecipientNameTo),
		CommentText:         c.CommentText,
		CreatedAt:           c.CreatedAt,
	}
}

// ToEntity converts the attributes into a row. Recipients are stored sorted
// so key lookups can compare them as arrays.
func (c *CommentAttributes) ToEntity() *Comment {
	var id int64
	if c.ID != nil {
		id = *c.ID
	}
	sending := c.SendingState
	return &Comment{
		ID:                  id,
		CourseID:            c.CourseID,
		GiverEmail:          c.GiverEmail,
		RecipientType:       c.RecipientType,
		Recipients:          pq.StringArray(c.Recipients.Sorted()),
		Status:              c.Status,
		SendingState:        &sending,
		ShowCommentTo:       fromRecipientTypes(c.ShowCommentTo),
		ShowGiverNameTo:     fromRecipientTypes(c.ShowGiverNameTo),
		ShowRecipientNameTo: fromRecipientTypes(c.ShowRecipientNameTo),
		CommentText:         c.CommentText,
		CreatedAt:           c.CreatedAt,
	}
}

// InvalidityInfo validates the course, the giver and every recipient
// according to the recipient type. SECTION recipients are not checked yet.
func (c *CommentAttributes) InvalidityInfo() []string {
	var errs []string
	add := func(field validation.FieldType, value string) {
		if msg := fieldValidator.InvalidityInfo(field, value); msg != "" {
			errs = append(errs, msg)
		}
	}

	add(validation.FieldCourseID, c.CourseID)
	add(validation.FieldEmail, c.GiverEmail)

	var recipientField validation.FieldType
	switch c.RecipientType {
	case RecipientPerson:
		recipientField = validation.FieldEmail
	case RecipientTeam:
		recipientField = validation.FieldTeamName
	case RecipientCourse:
		recipientField = validation.FieldCourseID
	case RecipientSection:
		// TODO: validate section names once sections carry their own naming rules.
		return errs
	default:
		return errs
	}
	for _, id := range c.Recipients.Sorted() {
		add(recipientField, id)
	}
	return errs
}

// IsValid reports whether InvalidityInfo is empty.
func (c *CommentAttributes) IsValid() bool {
	return len(c.InvalidityInfo()) == 0
}

// SanitizeForSaving trims and escapes the key fields, recipients and text,
// then prunes visibility options that the recipient type makes meaningless.
func (c *CommentAttributes) SanitizeForSaving() {
	c.CourseID = sanitizer.ForHTML(strings.TrimSpace(c.CourseID))
	c.GiverEmail = sanitizer.ForHTML(strings.TrimSpace(c.GiverEmail))

	recipients := make(RecipientSet, len(c.Recipients))
	for id := range c.Recipients {
		recipients[sanitizer.ForHTML(strings.TrimSpace(id))] = struct{}{}
	}
	c.Recipients = recipients

	c.CommentText = sanitizer.ForHTML(sanitizer.TextField(c.CommentText))

	c.pruneVisibilityOptions()
}

// pruneVisibilityOptions drops, for every list, the recipient types narrower
// than the comment's target, and drops the target itself from the recipient
// name list.
func (c *CommentAttributes) pruneVisibilityOptions() {
	var narrower []RecipientType
	switch c.RecipientType {
	case RecipientPerson:
	case RecipientTeam:
		narrower = []RecipientType{RecipientPerson}
	case RecipientSection:
		narrower = []RecipientType{RecipientPerson, RecipientTeam}
	case RecipientCourse:
		narrower = []RecipientType{RecipientPerson, RecipientTeam, RecipientSection}
	default:
		return
	}

	c.ShowCommentTo = withoutRecipientTypes(c.ShowCommentTo, narrower...)
	c.ShowGiverNameTo = withoutRecipientTypes(c.ShowGiverNameTo, narrower...)
	c.ShowRecipientNameTo = withoutRecipientTypes(c.ShowRecipientNameTo, append(narrower, c.RecipientType)...)
}

// IsVisibleTo reports whether viewers of the given type may read the comment.
func (c *CommentAttributes) IsVisibleTo(viewer RecipientType) bool {
	for _, t := range c.ShowCommentTo {
		if t == viewer {
			return true
		}
	}
	return false
}

// EntityType implements Attributes.
func (c *CommentAttributes) EntityType() string {
	return commentEntityType
}

// IdentificationString implements Attributes.
func (c *CommentAttributes) IdentificationString() string {
	return c.String()
}

func (c *CommentAttributes) String() string {
	id := "<unassigned>"
	if c.ID != nil {
		id = strconv.FormatInt(*c.ID, 10)
	}
	return fmt.Sprintf("Comment[id=%s course=%s giver=%s recipientType=%s recipients=%v status=%s createdAt=%s]",
		id, c.CourseID, c.GiverEmail, c.RecipientType, c.Recipients.Sorted(), c.Status, c.CreatedAt.UTC().Format(time.RFC3339Nano))
}

// SortCommentsByCreationTime orders comments oldest first.
func SortCommentsByCreationTime(comments []*CommentAttributes) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}

// SortCommentsByCreationTimeDescending orders comments newest first.
func SortCommentsByCreationTimeDescending(comments []*CommentAttributes) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
}

func withoutRecipientTypes(list []RecipientType, drop ...RecipientType) []RecipientType {
	if list == nil {
		return nil
	}
	out := make([]RecipientType, 0, len(list))
	for _, t := range list {
		keep := true
		for _, d := range drop {
			if t == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, t)
		}
	}
	return out
}

func toRecipientTypes(raw []string) []RecipientType {
	if raw == nil {
		return nil
	}
	out := make([]RecipientType, len(raw))
	for i, r := range raw {
		out[i] = RecipientType(r)
	}
	return out
}

func fromRecipientTypes(types []RecipientType) pq.StringArray {
	if types == nil {
		return pq.StringArray{}
	}
	out := make(pq.StringArray, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
