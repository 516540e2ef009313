package models

// Clone returns a copy of e that shares no memory with it. Foreign keys are
// plain values; the server id pointer is copied.
func Clone[T any, P interface {
	*T
	Entity
}](e P) P {
	cp := P(new(T))
	*cp = *e
	if id := e.Meta().ServerID; id != nil {
		cp.Meta().ServerID = Int64Ptr(*id)
	}
	return cp
}
