package memory

/*
Scope partitions memory visibility. At least one of the primary fields
(user, agent, app, run) should be set for retrieval to be meaningful.
*/
type Scope struct {
	UserID      string `json:"user_id,omitempty"`
	AgentID     string `json:"agent_id,omitempty"`
	AppID       string `json:"app_id,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	OrgID       string `json:"org_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	OrgName     string `json:"org_name,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}

/*
FilterMode decides how populated primary fields combine in a search.
MatchAny (the default) returns memories matching any field, MatchAll only
those matching every field.
*/
type FilterMode int

const (
	MatchAny FilterMode = iota
	MatchAll
)

func (mode FilterMode) String() string {
	if mode == MatchAll {
		return "AND"
	}

	return "OR"
}

type field struct {
	key   string
	value string
}

func (scope Scope) primary() []field {
	out := make([]field, 0, 4)

	for _, f := range []field{
		{"user_id", scope.UserID},
		{"agent_id", scope.AgentID},
		{"app_id", scope.AppID},
		{"run_id", scope.RunID},
	} {
		if f.value != "" {
			out = append(out, f)
		}
	}

	return out
}

/*
IsEmpty reports whether no primary field is set.
*/
func (scope Scope) IsEmpty() bool {
	return len(scope.primary()) == 0
}

/*
Normalize drops the name-based org and project fields when both id-based
fields are present.
*/
func (scope Scope) Normalize() Scope {
	if scope.OrgID != "" && scope.ProjectID != "" {
		scope.OrgName = ""
		scope.ProjectName = ""
	}

	return scope
}

/*
Filters builds the search filter document for the populated primary fields,
e.g. {"OR":[{"user_id":"u1"},{"agent_id":"a1"}]}. It returns nil for an
empty scope. Org and project never take part in filtering.
*/
func (scope Scope) Filters(mode FilterMode) map[string]any {
	fields := scope.primary()

	if len(fields) == 0 {
		return nil
	}

	clauses := make([]map[string]any, 0, len(fields))

	for _, f := range fields {
		clauses = append(clauses, map[string]any{f.key: f.value})
	}

	return map[string]any{mode.String(): clauses}
}

/*
Params renders the scope as query parameters.
*/
func (scope Scope) Params() map[string]string {
	scope = scope.Normalize()
	params := make(map[string]string)

	for _, f := range scope.primary() {
		params[f.key] = f.value
	}

	for key, value := range map[string]string{
		"org_id":       scope.OrgID,
		"project_id":   scope.ProjectID,
		"org_name":     scope.OrgName,
		"project_name": scope.ProjectName,
	} {
		if value != "" {
			params[key] = value
		}
	}

	return params
}

func (scope Scope) apply(body map[string]any) {
	for key, value := range scope.Params() {
		body[key] = value
	}
}

/*
tags lists the cache invalidation tags covering this scope.
*/
func (scope Scope) tags() []string {
	fields := scope.primary()
	out := make([]string, 0, len(fields))

	for _, f := range fields {
		out = append(out, f.key+"="+f.value)
	}

	return out
}

/*
withDefaults fills org and project from the client configuration when the
caller left them empty.
*/
func (scope Scope) withDefaults(cfg Config) Scope {
	if scope.OrgID == "" && scope.OrgName == "" {
		scope.OrgID, scope.OrgName = cfg.OrgID, cfg.OrgName
	}

	if scope.ProjectID == "" && scope.ProjectName == "" {
		scope.ProjectID, scope.ProjectName = cfg.ProjectID, cfg.ProjectName
	}

	return scope.Normalize()
}
