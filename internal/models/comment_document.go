package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Search document field names for comments.
const (
	CommentDocumentType = "comment"

	DocFieldType                = "type"
	DocFieldCourseID            = "courseId"
	DocFieldCourseName          = "courseName"
	DocFieldGiverEmail          = "giverEmail"
	DocFieldGiverName           = "giverName"
	DocFieldGiverTitle          = "giverTitle"
	DocFieldRecipientType       = "recipientType"
	DocFieldRecipientEmails     = "recipientEmails"
	DocFieldRecipientNames      = "recipientNames"
	DocFieldRecipientTeams      = "recipientTeams"
	DocFieldRecipientSections   = "recipientSections"
	DocFieldStatus              = "status"
	DocFieldSendingState        = "sendingState"
	DocFieldShowCommentTo       = "showCommentTo"
	DocFieldShowGiverNameTo     = "showGiverNameTo"
	DocFieldShowRecipientNameTo = "showRecipientNameTo"
	DocFieldCreatedAt           = "createdAt"
	DocFieldCommentText         = "commentText"
)

// recipientDelimiter separates values of multi-valued document fields. It is
// part of the stored format of existing documents.
const recipientDelimiter = ","

// ErrUnpersistedDocument is returned when mapping a comment that has no id yet.
var ErrUnpersistedDocument = errors.New("comment must be persisted before it can be indexed")

// recipientListWriter encodes a multi-valued field. The delimiter written
// before a value depends on the value's position in the recipient list, so a
// skipped position still shifts the following values.
type recipientListWriter struct {
	b strings.Builder
}

func (w *recipientListWriter) write(pos int, value string) {
	if pos > 0 {
		w.b.WriteString(recipientDelimiter)
	}
	w.b.WriteString(value)
}

func (w *recipientListWriter) String() string {
	return w.b.String()
}

// decodeRecipientList is the inverse of recipientListWriter.
func decodeRecipientList(raw string) []string {
	return strings.Split(raw, recipientDelimiter)
}

// ToDocument projects the comment into a search document. course and giver
// may be nil when unknown; students maps recipient emails to their records.
func (c *CommentAttributes) ToDocument(course *Course, giver *Instructor, students map[string]Student) (SearchDocument, error) {
	if c.ID == nil {
		return SearchDocument{}, ErrUnpersistedDocument
	}

	var emails, names, teams, sections recipientListWriter
	switch c.RecipientType {
	case RecipientPerson:
		for i, email := range c.Recipients.Sorted() {
			emails.write(i, email)
			if student, ok := students[email]; ok {
				names.write(i, student.Name)
				teams.write(i, student.Team)
				sections.write(i, student.Section)
			}
		}
	case RecipientTeam:
		for i, team := range c.Recipients.Sorted() {
			teams.write(i, team)
		}
	case RecipientSection:
		for i, section := range c.Recipients.Sorted() {
			sections.write(i, section)
		}
	}

	courseName := ""
	if course != nil {
		courseName = course.Name
	}
	giverName, giverTitle := c.GiverEmail, ""
	if giver != nil {
		giverName, giverTitle = giver.Name, giver.DisplayedName
	}

	doc := NewSearchDocument(strconv.FormatInt(*c.ID, 10)).
		SetText(DocFieldType, CommentDocumentType).
		SetText(DocFieldCourseID, c.CourseID).
		SetText(DocFieldCourseName, courseName).
		SetText(DocFieldGiverEmail, c.GiverEmail).
		SetText(DocFieldGiverName, giverName).
		SetText(DocFieldGiverTitle, giverTitle).
		SetText(DocFieldRecipientType, string(c.RecipientType)).
		SetText(DocFieldRecipientEmails, emails.String()).
		SetText(DocFieldRecipientNames, names.String()).
		SetText(DocFieldRecipientTeams, teams.String()).
		SetText(DocFieldRecipientSections, sections.String()).
		SetText(DocFieldStatus, string(c.Status)).
		SetText(DocFieldSendingState, string(c.SendingState)).
		SetText(DocFieldShowCommentTo, formatRecipientTypes(c.ShowCommentTo)).
		SetText(DocFieldShowGiverNameTo, formatRecipientTypes(c.ShowGiverNameTo)).
		SetText(DocFieldShowRecipientNameTo, formatRecipientTypes(c.ShowRecipientNameTo)).
		SetDate(DocFieldCreatedAt, c.CreatedAt).
		SetText(DocFieldCommentText, c.CommentText)
	return doc, nil
}

// CommentFromDocument rebuilds a comment from a search hit. Only the id, key
// fields, recipients, creation time and text are recovered; status, sending
// state and visibility options stay empty and must be read from the store.
func CommentFromDocument(doc ScoredDocument) (*CommentAttributes, error) {
	id, err := strconv.ParseInt(doc.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("document id %q: %w", doc.ID, err)
	}

	comment := &CommentAttributes{ID: &id}
	if comment.CourseID, err = doc.Text(DocFieldCourseID); err != nil {
		return nil, err
	}
	if comment.GiverEmail, err = doc.Text(DocFieldGiverEmail); err != nil {
		return nil, err
	}

	rawType, err := doc.Text(DocFieldRecipientType)
	if err != nil {
		return nil, err
	}
	if comment.RecipientType, err = ParseRecipientType(rawType); err != nil {
		return nil, err
	}

	var recipients []string
	switch comment.RecipientType {
	case RecipientPerson:
		recipients, err = decodeRecipientField(doc, DocFieldRecipientEmails)
	case RecipientTeam:
		recipients, err = decodeRecipientField(doc, DocFieldRecipientTeams)
	case RecipientSection:
		recipients, err = decodeRecipientField(doc, DocFieldRecipientSections)
	case RecipientCourse:
		recipients = []string{""}
	}
	if err != nil {
		return nil, err
	}
	comment.Recipients = NewRecipientSet(recipients...)

	if comment.CreatedAt, err = doc.Date(DocFieldCreatedAt); err != nil {
		return nil, err
	}
	if comment.CommentText, err = doc.Text(DocFieldCommentText); err != nil {
		return nil, err
	}
	return comment, nil
}

func decodeRecipientField(doc ScoredDocument, field string) ([]string, error) {
	raw, err := doc.Text(field)
	if err != nil {
		return nil, err
	}
	return decodeRecipientList(raw), nil
}

// formatRecipientTypes renders a visibility list as "[A, B]".
func formatRecipientTypes(types []RecipientType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
