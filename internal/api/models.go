package api

// TaskResponse is one task as seen by clients.
type TaskResponse struct {
	// Index is the file-order position, valid until the next mutation.
	Index    int    `json:"index"`
	Line     string `json:"line"`
	Selected bool   `json:"selected"`
}

// TaskListResponse is the result of a list query.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`

	// Total counts all tasks before filtering.
	Total int `json:"total"`
}

// AddTasksRequest defines the payload for adding tasks.
type AddTasksRequest struct {
	Lines []string `json:"lines" validate:"required,min=1,dive,required"`

	// AtEnd overrides the configured insert position when set.
	AtEnd *bool `json:"at_end,omitempty"`
}

// UpdateTaskRequest replaces one task with one or more lines.
type UpdateTaskRequest struct {
	Lines []string `json:"lines" validate:"required,min=1,dive,required"`
}

// PriorityRequest sets or, with an empty priority, clears the priority.
type PriorityRequest struct {
	Priority string `json:"priority" validate:"omitempty,len=1"`
}

// DeferRequest moves the due or threshold date of a task.
type DeferRequest struct {
	// Spec is a date, an interval such as "3d" or "+1w", natural language,
	// or empty to remove the date.
	Spec string `json:"spec"`
	Date string `json:"date" validate:"omitempty,oneof=due threshold"`
}

// SelectionRequest replaces the selection.
type SelectionRequest struct {
	Indexes []int `json:"indexes" validate:"dive,gte=0"`
}

// SelectionResponse reports the selection size.
type SelectionResponse struct {
	Count int `json:"count"`
}

// StatusResponse reports the sync state of the session.
type StatusResponse struct {
	Path           string `json:"path"`
	State          string `json:"state"`
	ChangesPending bool   `json:"changes_pending"`
	Size           int    `json:"size"`
	Selected       int    `json:"selected"`
}

// FacetsResponse lists the distinct lists, tags and priorities in use.
type FacetsResponse struct {
	Lists      []string `json:"lists"`
	Tags       []string `json:"tags"`
	Priorities []string `json:"priorities"`
}
