package policy

// Snapshot is everything a report needs, fetched once. Resolution never
// mutates a Snapshot; WithRule returns a modified copy.
type Snapshot struct {
	Projects    []Project
	Clients     map[string]Client
	GlobalRules []ApprovalRule
	Directory   Directory
}

// Client returns the client owning project, or nil when it is not in the snapshot.
func (s *Snapshot) Client(project Project) *Client {
	c, ok := s.Clients[project.ClientID]
	if !ok {
		return nil
	}
	return &c
}

// Project finds a project by id.
func (s *Snapshot) Project(id string) (Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// WithRule returns a copy of the snapshot with rule applied using upsert
// semantics: an existing rule with the same scope and range takes the new
// role in place, otherwise the rule is appended. It reports false when the
// rule targets a project missing from the snapshot.
func (s *Snapshot) WithRule(rule ApprovalRule) (*Snapshot, bool) {
	next := &Snapshot{
		Projects:    make([]Project, len(s.Projects)),
		Clients:     s.Clients,
		GlobalRules: s.GlobalRules,
		Directory:   s.Directory,
	}
	copy(next.Projects, s.Projects)

	if rule.Scope.IsGlobal() {
		next.GlobalRules = upsertInto(s.GlobalRules, rule)
		return next, true
	}

	for i := range next.Projects {
		if next.Projects[i].ID == rule.Scope.ProjectID {
			next.Projects[i].Rules = upsertInto(next.Projects[i].Rules, rule)
			return next, true
		}
	}
	return nil, false
}

func upsertInto(rules []ApprovalRule, rule ApprovalRule) []ApprovalRule {
	out := make([]ApprovalRule, len(rules), len(rules)+1)
	copy(out, rules)
	for i := range out {
		if out[i].Threshold().SameRange(rule.Threshold()) {
			out[i].Role = rule.Role
			return out
		}
	}
	return append(out, rule)
}
