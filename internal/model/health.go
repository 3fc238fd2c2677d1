package model

// Health is the unauthenticated liveness payload. The backend spells the
// environment field "ENV".
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Env     string `json:"ENV"`
	Message string `json:"message"`
}

// Available reports whether the backend declared itself up.
func (h *Health) Available() bool { return h != nil && h.Status == "available" }
