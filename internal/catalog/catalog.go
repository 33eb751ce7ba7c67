// Package catalog implements vigilo's fixed, fourteen-tool capability set:
// JSON schema generation (github.com/invopop/jsonschema, grounded on the
// teacher's generateInputSchema helper in tools_observability.go), a risk
// label per tool, and a handler. Handlers build on internal/safe for
// path/size-guarded file access.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/vigilo-sh/vigilo/internal/model"
)

// Handler executes one tool call. dir is the effective working directory
// for relative paths and subprocess execution. It returns the JSON result
// subtree, an optional unified diff (write-class tools only), and an
// error classified via internal/errors.
type Handler func(ctx context.Context, dir string, args json.RawMessage) (result json.RawMessage, diff string, err error)

// Tool is one catalog entry.
type Tool struct {
	Name        string
	Risk        model.Risk
	Description string
	InputType   interface{} // zero value of the tool's input struct, for schema reflection
	Handle      Handler
}

// Catalog is the closed, ordered set of vigilo's tools.
type Catalog struct {
	tools []Tool
	byName map[string]Tool
}

// New builds the fixed fourteen-tool catalog.
func New() *Catalog {
	tools := []Tool{
		{Name: "read_file", Risk: model.RiskRead, Description: "Read a UTF-8 text file, optionally a line range.", InputType: ReadFileInput{}, Handle: handleReadFile},
		{Name: "write_file", Risk: model.RiskWrite, Description: "Write content to a file, creating parent directories as needed.", InputType: WriteFileInput{}, Handle: handleWriteFile},
		{Name: "list_directory", Risk: model.RiskRead, Description: "List the sorted entries of a directory with their type.", InputType: ListDirectoryInput{}, Handle: handleListDirectory},
		{Name: "create_directory", Risk: model.RiskWrite, Description: "Create a directory and any missing parents.", InputType: CreateDirectoryInput{}, Handle: handleCreateDirectory},
		{Name: "delete_file", Risk: model.RiskWrite, Description: "Delete a single file.", InputType: DeleteFileInput{}, Handle: handleDeleteFile},
		{Name: "move_file", Risk: model.RiskWrite, Description: "Move or rename a file.", InputType: MoveFileInput{}, Handle: handleMoveFile},
		{Name: "search_files", Risk: model.RiskRead, Description: "Search files under root for a literal or regex pattern.", InputType: SearchFilesInput{}, Handle: handleSearchFiles},
		{Name: "run_command", Risk: model.RiskExec, Description: "Run a shell command with a bounded timeout.", InputType: RunCommandInput{}, Handle: handleRunCommand},
		{Name: "get_file_info", Risk: model.RiskRead, Description: "Return size, kind, and modification time for a path.", InputType: GetFileInfoInput{}, Handle: handleGetFileInfo},
		{Name: "patch_file", Risk: model.RiskWrite, Description: "Apply a unified diff to a file.", InputType: PatchFileInput{}, Handle: handlePatchFile},
		{Name: "git_status", Risk: model.RiskRead, Description: "Return the working tree status.", InputType: GitStatusInput{}, Handle: handleGitStatus},
		{Name: "git_diff", Risk: model.RiskRead, Description: "Return a unified diff of the working tree or index.", InputType: GitDiffInput{}, Handle: handleGitDiff},
		{Name: "git_log", Risk: model.RiskRead, Description: "Return a one-line-per-commit history.", InputType: GitLogInput{}, Handle: handleGitLog},
		{Name: "git_commit", Risk: model.RiskWrite, Description: "Stage all changes and commit.", InputType: GitCommitInput{}, Handle: handleGitCommit},
	}

	c := &Catalog{tools: tools, byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		c.byName[t.Name] = t
	}
	return c
}

// Names returns every catalog tool name in registration order. The hook
// ingest's dedup check uses IsCatalogTool over the same set.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name
	}
	return names
}

// IsCatalogTool reports whether name is one of the fourteen fixed tools.
func (c *Catalog) IsCatalogTool(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Lookup returns the tool by name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// List returns every tool in registration order.
func (c *Catalog) List() []Tool {
	return c.tools
}

// ToolDescriptor is the wire shape returned from tools/list.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	Risk        model.Risk      `json:"risk"`
}

// Descriptors returns the tools/list payload: every tool's descriptor with
// its reflected JSON schema.
func (c *Catalog) Descriptors() ([]ToolDescriptor, error) {
	out := make([]ToolDescriptor, 0, len(c.tools))
	for _, t := range c.tools {
		schema, err := GenerateInputSchema(t.InputType)
		if err != nil {
			return nil, err
		}
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
			Risk:        t.Risk,
		})
	}
	return out, nil
}

// GenerateInputSchema reflects a tool's input struct into a JSON Schema
// document, grounded on the teacher's generateInputSchema helper in
// internal/colony/mcp/tools_observability.go (jsonschema.Reflector.Reflect
// followed by a marshal round trip), reproduced here without the genkit
// dependency the teacher paired it with.
func GenerateInputSchema(inputType interface{}) (json.RawMessage, error) {
	reflector := jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	schema := reflector.Reflect(inputType)
	return json.Marshal(schema)
}
