package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// CommentFilter narrows comment listings.
type CommentFilter struct {
	CourseID   string
	GiverEmail string
	Page       int
	PageSize   int
	SortOrder  string
}
