package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// FieldType names the kind of value being checked.
type FieldType string

const (
	FieldCourseID    FieldType = "course ID"
	FieldEmail       FieldType = "an email"
	FieldTeamName    FieldType = "a team name"
	FieldSectionName FieldType = "a section name"
)

const (
	CourseIDMaxLength    = 40
	EmailMaxLength       = 254
	TeamNameMaxLength    = 60
	SectionNameMaxLength = 60
)

var courseIDPattern = regexp.MustCompile(`^[\w.$-]+$`)

type rule struct {
	tag       string
	maxLength int
	reason    string
}

var rules = map[FieldType]rule{
	FieldCourseID: {
		tag:       "courseid",
		maxLength: CourseIDMaxLength,
		reason:    "it can only contain letters, numbers, dots, hyphens, underscores and dollar signs",
	},
	FieldEmail: {
		tag:       "email",
		maxLength: EmailMaxLength,
		reason:    "it is not in the correct format",
	},
	FieldTeamName: {
		tag:       "teamname",
		maxLength: TeamNameMaxLength,
		reason:    "it contains invalid characters",
	},
	FieldSectionName: {
		tag:       "sectionname",
		maxLength: SectionNameMaxLength,
		reason:    "it contains invalid characters",
	},
}

// FieldValidator checks single field values and reports problems as
// human readable messages.
type FieldValidator struct {
	validate *validator.Validate
}

// NewFieldValidator registers the domain specific tags on validate. A nil
// validate gets a fresh instance.
func NewFieldValidator(validate *validator.Validate) *FieldValidator {
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation("courseid", func(fl validator.FieldLevel) bool {
		return courseIDPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("teamname", func(fl validator.FieldLevel) bool {
		return isPrintableName(fl.Field().String())
	})
	_ = validate.RegisterValidation("sectionname", func(fl validator.FieldLevel) bool {
		return isPrintableName(fl.Field().String())
	})
	return &FieldValidator{validate: validate}
}

// InvalidityInfo returns an empty string when value is acceptable as field,
// otherwise a message describing the violation.
func (v *FieldValidator) InvalidityInfo(field FieldType, value string) string {
	r, ok := rules[field]
	if !ok {
		return fmt.Sprintf("%q cannot be validated: unknown field type %q", value, field)
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Sprintf("%q is not acceptable as %s because it is empty", value, field)
	}
	if value != strings.TrimSpace(value) {
		return fmt.Sprintf("%q is not acceptable as %s because it starts or ends with whitespace", value, field)
	}
	if utf8.RuneCountInString(value) > r.maxLength {
		return fmt.Sprintf("%q is not acceptable as %s because it is longer than %d characters", value, field, r.maxLength)
	}
	if err := v.validate.Var(value, r.tag); err != nil {
		return fmt.Sprintf("%q is not acceptable as %s because %s", value, field, r.reason)
	}
	return ""
}

func isPrintableName(s string) bool {
	if strings.ContainsAny(s, "|%") {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
