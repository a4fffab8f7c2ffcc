package gateway

// Help is the machine-readable operation catalog returned by the help op.
// It exists so LLM-agent callers can onboard themselves without docs.
type Help struct {
	Ops  []OpHelp `json:"ops"`
	Tips []string `json:"tips"`
}

// OpHelp documents one operation.
type OpHelp struct {
	Op      string    `json:"op"`
	Aliases []string  `json:"aliases,omitempty"`
	Args    []ArgHelp `json:"args,omitempty"`
	Summary string    `json:"summary"`
}

// ArgHelp documents one operation argument.
type ArgHelp struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Doc      string `json:"doc,omitempty"`
}

var refArgs = []ArgHelp{
	{Name: "id", Type: "string", Doc: "task id; wins over title matching"},
	{Name: "title", Type: "string", Doc: "case-insensitive title substring; an exact title always wins"},
	{Name: "q", Type: "string|[]string", Doc: "alternative substrings, matched as OR"},
	{Name: "exact", Type: "bool", Doc: "on an ambiguous match, take the first candidate in store order"},
}

// HelpCatalog returns the operation catalog.
func HelpCatalog() Help {
	return Help{
		Ops: []OpHelp{
			{Op: "add", Summary: "create a task in the planned state", Args: []ArgHelp{
				{Name: "title", Type: "string", Required: true},
				{Name: "project", Type: "string", Required: true, Doc: "matched case-insensitively against existing projects"},
				{Name: "note", Type: "string", Doc: "optional initial note"},
				{Name: "priority", Type: "int", Doc: "lower is more urgent; omit for lowest urgency"},
			}},
			{Op: "done", Aliases: []string{"complete", "finish"}, Summary: "mark a task done", Args: refArgs},
			{Op: "reopen", Summary: "move a done task back to planned", Args: refArgs},
			{Op: "start", Aliases: []string{"activate", "begin"}, Summary: "mark a task active", Args: refArgs},
			{Op: "block", Summary: "mark a task blocked with a reason", Args: append([]ArgHelp{
				{Name: "reason", Type: "string", Required: true},
			}, refArgs...)},
			{Op: "unblock", Summary: "move a blocked task back to planned", Args: refArgs},
			{Op: "status", Summary: "set an arbitrary status", Args: append([]ArgHelp{
				{Name: "status", Type: "string", Required: true, Doc: "planned, active, blocked or done"},
				{Name: "reason", Type: "string", Doc: "required when status is blocked"},
			}, refArgs...)},
			{Op: "note", Summary: "append a timestamped note to a task", Args: append([]ArgHelp{
				{Name: "text", Type: "string", Required: true},
			}, refArgs...)},
			{Op: "rename", Summary: "replace a task title", Args: []ArgHelp{
				{Name: "id", Type: "string", Doc: "task id"},
				{Name: "q", Type: "string|[]string", Doc: "title substrings picking the task"},
				{Name: "title", Type: "string", Required: true, Doc: "the new title"},
			}},
			{Op: "delete", Aliases: []string{"remove", "del", "rm"}, Summary: "remove a task and its notes", Args: refArgs},
			{Op: "deleteMany", Summary: "remove every task matching a title filter", Args: []ArgHelp{
				{Name: "q", Type: "string|[]string", Required: true},
				{Name: "status", Type: "string", Doc: "optional status filter"},
			}},
			{Op: "purge", Summary: "remove all done tasks"},
			{Op: "find", Aliases: []string{"search", "query"}, Summary: "list tasks matching a title filter", Args: []ArgHelp{
				{Name: "q", Type: "string|[]string", Required: true},
			}},
			{Op: "get", Summary: "fetch one task by id or title", Args: refArgs},
			{Op: "list", Aliases: []string{"ls"}, Summary: "the aggregate view: tasks grouped by project with counts"},
			{Op: "active", Summary: "tasks currently in flight"},
			{Op: "batch", Summary: "apply an ordered list of ops; one failure does not abort the rest", Args: []ArgHelp{
				{Name: "ops", Type: "[]command", Required: true},
			}},
			{Op: "import", Aliases: []string{"restore"}, Summary: "load a backup payload", Args: []ArgHelp{
				{Name: "data", Type: "backup", Required: true},
				{Name: "mode", Type: "string", Doc: "replace, merge (default) or append"},
			}},
			{Op: "export", Aliases: []string{"backup"}, Summary: "snapshot every task as a backup payload"},
			{Op: "sweep", Summary: "re-status tasks idle past the configured threshold"},
			{Op: "help", Summary: "this catalog"},
		},
		Tips: []string{
			"reference tasks by title substring; pass id only when you have one",
			"an Ambiguous error carries the candidates: retry with the id, a longer title, or exact:true",
			"zero matches from find or deleteMany is a valid empty result, not an error",
			"retrying done, block, rename or unblock is safe; retrying add creates duplicates",
		},
	}
}
