package moderation

// Checker is the profanity test a Policy applies.
type Checker interface {
	ContainsProfanity(text string) bool
}

// Outcome is the moderation decision for one entity.
type Outcome struct {
	Blocked bool
}

// Policy applies a Checker to every moderated field of an entity.
type Policy struct {
	checker Checker
}

// NewPolicy returns a Policy backed by c.
func NewPolicy(c Checker) *Policy {
	return &Policy{checker: c}
}

// Evaluate blocks the entity if any field is flagged. It never fails.
func (p *Policy) Evaluate(fields ...string) Outcome {
	for _, f := range fields {
		if p.checker.ContainsProfanity(f) {
			return Outcome{Blocked: true}
		}
	}
	return Outcome{}
}

// Merge keeps an existing block in place: an update can add a block but
// never lift one.
func (o Outcome) Merge(alreadyBlocked bool) Outcome {
	return Outcome{Blocked: o.Blocked || alreadyBlocked}
}
