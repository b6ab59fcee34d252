package domain

// Statistics aggregates directory counts used by admin tooling.
type Statistics struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Admins   int64 `json:"admins"`
	Managers int64 `json:"managers"`
}
