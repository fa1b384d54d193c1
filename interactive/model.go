package interactive

// Session is one in-progress interactive authentication attempt.
type Session struct {
	ID        string
	Completed []string
	CreatedAt int64
}

// HasCompleted reports whether stage is in the completed set.
func (s *Session) HasCompleted(stage string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.Completed {
		if c == stage {
			return true
		}
	}
	return false
}

// Satisfies reports whether every stage of flow has been completed.
// An empty flow never satisfies a session.
func (s *Session) Satisfies(flow []string) bool {
	if len(flow) == 0 {
		return false
	}
	for _, stage := range flow {
		if !s.HasCompleted(stage) {
			return false
		}
	}
	return true
}
