package catalog

// Input structs for each catalog tool. Struct tags drive both JSON
// decoding and (via invopop/jsonschema reflection) the schema advertised
// in tools/list.

type ReadFileInput struct {
	Path      string `json:"path" jsonschema:"required,description=Absolute or cwd-relative file path"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=1-based first line to read (inclusive)"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=1-based last line to read (inclusive)"`
}

type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"required"`
	Content string `json:"content" jsonschema:"required"`
}

type ListDirectoryInput struct {
	Path string `json:"path" jsonschema:"required"`
}

type CreateDirectoryInput struct {
	Path string `json:"path" jsonschema:"required"`
}

type DeleteFileInput struct {
	Path string `json:"path" jsonschema:"required"`
}

type MoveFileInput struct {
	From string `json:"from" jsonschema:"required"`
	To   string `json:"to" jsonschema:"required"`
}

type SearchFilesInput struct {
	Root    string `json:"root" jsonschema:"required"`
	Pattern string `json:"pattern" jsonschema:"required"`
	Regex   bool   `json:"regex,omitempty"`
}

type RunCommandInput struct {
	Command string `json:"command" jsonschema:"required"`
	Cwd     string `json:"cwd,omitempty"`
}

type GetFileInfoInput struct {
	Path string `json:"path" jsonschema:"required"`
}

type PatchFileInput struct {
	Path        string `json:"path" jsonschema:"required"`
	UnifiedDiff string `json:"unified_diff" jsonschema:"required"`
}

type GitStatusInput struct{}

type GitDiffInput struct {
	Staged bool `json:"staged,omitempty"`
}

type GitLogInput struct {
	Limit int `json:"limit,omitempty"`
}

type GitCommitInput struct {
	Message string `json:"message" jsonschema:"required"`
}
