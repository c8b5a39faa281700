package signal

// Edge tracks a boolean's previous value and reports transitions.
type Edge struct {
	last bool
}

// Rising reports true on the one call where in goes false -> true.
func (e *Edge) Rising(in bool) bool {
	r := !e.last && in
	e.last = in
	return r
}

// Falling reports true on the one call where in goes true -> false.
func (e *Edge) Falling(in bool) bool {
	f := e.last && !in
	e.last = in
	return f
}

// Change reports true on any transition.
func (e *Edge) Change(in bool) bool {
	c := e.last != in
	e.last = in
	return c
}
