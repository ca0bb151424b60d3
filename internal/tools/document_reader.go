package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultMaxDocumentBytes = 512 * 1024

// DocumentReaderTool reads the full text content of an uploaded financial
// document so the analyst agent can ground its report in it. When baseDir
// is set, paths outside it are rejected.
type DocumentReaderTool struct {
	baseDir  string
	maxBytes int
}

// DocumentReaderArgs represents the arguments for the document reader
type DocumentReaderArgs struct {
	Path string `json:"path"`
}

// NewDocumentReaderTool creates a new document reader tool
func NewDocumentReaderTool(baseDir string, maxBytes int) *DocumentReaderTool {
	if maxBytes <= 0 {
		maxBytes = defaultMaxDocumentBytes
	}
	return &DocumentReaderTool{
		baseDir:  baseDir,
		maxBytes: maxBytes,
	}
}

func (t *DocumentReaderTool) Name() string {
	return "read_financial_document"
}

func (t *DocumentReaderTool) Description() string {
	return `Read the full text content of a financial document from a file path.
Use this tool to load the submitted document before analyzing it. The tool
returns the raw document text; long documents are truncated.`
}

func (t *DocumentReaderTool) Parameters() json.RawMessage {
	schema := `{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "The file path to the financial document"
			}
		},
		"required": ["path"]
	}`
	return json.RawMessage(schema)
}

func (t *DocumentReaderTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var readerArgs DocumentReaderArgs
	if err := json.Unmarshal(args, &readerArgs); err != nil {
		return ToolResult{
			Content: fmt.Sprintf("Failed to parse reader arguments: %v", err),
			IsError: true,
		}, nil
	}

	path := strings.TrimSpace(readerArgs.Path)
	if path == "" {
		return ToolResult{
			Content: "Document path is required",
			IsError: true,
		}, nil
	}

	if err := t.checkPath(path); err != nil {
		return ToolResult{
			Content: fmt.Sprintf("Refusing to read document: %v", err),
			IsError: true,
		}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ToolResult{
			Content: fmt.Sprintf("Failed to read document: %v", err),
			IsError: true,
		}, nil
	}

	text := string(content)
	truncated := false
	if len(text) > t.maxBytes {
		text = text[:t.maxBytes]
		truncated = true
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("Document: %s\n", filepath.Base(path)))
	if truncated {
		out.WriteString(fmt.Sprintf("(truncated to first %d bytes)\n", t.maxBytes))
	}
	out.WriteString("Content:\n")
	out.WriteString(text)
	return ToolResult{Content: out.String()}, nil
}

func (t *DocumentReaderTool) checkPath(path string) error {
	if t.baseDir == "" {
		return nil
	}
	absBase, err := filepath.Abs(t.baseDir)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside the uploads directory", path)
	}
	return nil
}
