package product

// SideFailure records one non-fatal failure of a best-effort side
// operation, keyed by the asset it concerned.
type SideFailure struct {
	Ref string `json:"ref"`
	Err error  `json:"-"`
}

// CleanupReport is the outcome of best-effort asset cleanup. The
// enclosing operation succeeds even when Failures is non-empty; the
// orphaned remote assets are an accepted degraded mode.
type CleanupReport struct {
	Attempted int           `json:"attempted"`
	Failures  []SideFailure `json:"failures,omitempty"`
}

func (r *CleanupReport) Degraded() bool {
	return r != nil && len(r.Failures) > 0
}
