package service

// SideEffect is the outcome of one best-effort step after a transition
type SideEffect struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Result is the discriminated outcome of a public operation. SideEffects are
// reported for observability and never change Success.
type Result struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Kind        ErrorKind    `json:"-"`
	Data        interface{}  `json:"data,omitempty"`
	SideEffects []SideEffect `json:"-"`
}

func failure(kind ErrorKind, message string) *Result {
	return &Result{Success: false, Error: message, Kind: kind}
}

func failureFrom(err error) *Result {
	return failure(KindOf(err), err.Error())
}

func (r *Result) record(name string, err error) {
	se := SideEffect{Name: name, OK: err == nil}
	if err != nil {
		se.Error = err.Error()
	}
	r.SideEffects = append(r.SideEffects, se)
}

// FailedSideEffects returns the names of side effects that did not succeed.
func (r *Result) FailedSideEffects() []string {
	var names []string
	for _, se := range r.SideEffects {
		if !se.OK {
			names = append(names, se.Name)
		}
	}
	return names
}
