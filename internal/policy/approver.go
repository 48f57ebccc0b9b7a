package policy

// PersonIDForRole returns the person identifier a role points at for the
// project, or "" when the project or client leaves it unset.
func PersonIDForRole(role Role, project Project, client *Client) string {
	switch role {
	case RoleManager:
		return project.ManagerID
	case RoleDirector:
		return project.DirectorID
	case RoleClientOwner:
		if client == nil {
			return ""
		}
		return client.OwnerID
	}
	return ""
}

// ResolveApprover maps role to a concrete person. It returns nil when the
// referenced id is empty or the directory has no such person.
func ResolveApprover(role Role, project Project, client *Client, dir Directory) *Person {
	p, ok := dir.Lookup(PersonIDForRole(role, project, client))
	if !ok {
		return nil
	}
	return &p
}

// ReferencedPersonIDs lists every distinct manager, director and client owner
// id referenced by the given projects, in first-seen order.
func ReferencedPersonIDs(projects []Project, clients map[string]Client) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, p := range projects {
		add(p.ManagerID)
		add(p.DirectorID)
		if c, ok := clients[p.ClientID]; ok {
			add(c.OwnerID)
		}
	}
	return ids
}
