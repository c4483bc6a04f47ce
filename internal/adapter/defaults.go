package adapter

// RegisterDefaults registers every adapter this module ships with into r.
// Callers that only want a subset should call r.Register individually
// instead.
func RegisterDefaults(r *Registry) error {
	for _, a := range []Adapter{Claude, Gemini, Aider, Codex} {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}
