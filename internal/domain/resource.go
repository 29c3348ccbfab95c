package domain

// State represents the variant of a Resource
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Resource is the envelope every read operation emits. A logical request
// produces a linear sequence of resources: zero or more Loading values
// followed by exactly one terminal Success or Error, followed by a closing
// Loading(false).
//
// Data always carries the best-known rows (cache-first). NetworkData is
// non-nil only on a Success that was fed by a live remote fetch; callers use
// it to distinguish "the server had nothing new" from "the cache is stale".
type Resource[E any] struct {
	State       State  `json:"state"`
	IsLoading   bool   `json:"is_loading"`
	Data        []E    `json:"data,omitempty"`
	NetworkData []E    `json:"network_data,omitempty"`
	Message     string `json:"message,omitempty"`
	Err         error  `json:"-"`
}

// Loading creates a Loading resource. The closing emission of every request
// is Loading(false) so callers can clear progress indicators without
// inspecting error state.
func Loading[E any](active bool) Resource[E] {
	return Resource[E]{State: StateLoading, IsLoading: active}
}

// Success creates a terminal Success backed purely by local data.
func Success[E any](data []E) Resource[E] {
	return Resource[E]{State: StateSuccess, Data: data}
}

// SuccessWithNetwork creates a terminal Success fed by a live fetch.
// NetworkData is guaranteed non-nil even when the fetched page was empty,
// so end-of-list detection can rely on it.
func SuccessWithNetwork[E any](data, network []E) Resource[E] {
	if network == nil {
		network = make([]E, 0)
	}
	return Resource[E]{State: StateSuccess, Data: data, NetworkData: network}
}

// Failure creates a terminal Error. The last known cache snapshot is carried
// in Data so consumers never discard good rows over a transient fault.
func Failure[E any](err error, data []E) Resource[E] {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Resource[E]{State: StateError, Data: data, Message: msg, Err: err}
}

// FromNetwork reports whether this resource was fed by a live fetch.
func (r Resource[E]) FromNetwork() bool {
	return r.State == StateSuccess && r.NetworkData != nil
}

// EndOfList reports whether this resource marks the end of pagination.
// An empty page at offset zero is a legitimate "no results", not an
// end-of-list signal.
func (r Resource[E]) EndOfList(offset int) bool {
	return r.FromNetwork() && len(r.NetworkData) == 0 && offset > 0
}

// IsTerminal reports whether this resource ends the request (the closing
// Loading(false) still follows it).
func (r Resource[E]) IsTerminal() bool {
	return r.State == StateSuccess || r.State == StateError
}
