package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditFile is the audit log file name inside a .grag directory.
const AuditFile = "audit.jsonl"

// AuditEntry records one MCP tool invocation: what was called, how it went
// and a sanitized summary of its parameters.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	Scope      string            `json:"scope"` // "local" or "global"
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

type auditFile struct {
	mu   sync.Mutex
	file *os.File
}

// AuditLogger appends entries to JSONL files. Entries that change user
// presets go to the global log next to them; everything else goes to the
// project log. It is safe for concurrent use, and a nil AuditLogger is a
// no-op.
type AuditLogger struct {
	local  *auditFile // <project>/.grag/audit.jsonl
	global *auditFile // <global .grag dir>/audit.jsonl
}

// openAuditFile opens dir/audit.jsonl for append. Returns nil on failure.
func openAuditFile(dir string) *auditFile {
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}
	path := filepath.Join(dir, AuditFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &auditFile{file: f}
}

func (af *auditFile) write(entry AuditEntry) {
	if af == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	af.mu.Lock()
	defer af.mu.Unlock()
	if af.file != nil {
		_, _ = af.file.Write(data)
	}
}

func (af *auditFile) close() error {
	if af == nil {
		return nil
	}
	af.mu.Lock()
	defer af.mu.Unlock()
	if af.file == nil {
		return nil
	}
	err := af.file.Close()
	af.file = nil
	return err
}

// NewAuditLogger opens <projectRoot>/.grag/audit.jsonl and
// <globalDir>/audit.jsonl. A scope whose file cannot be opened is skipped
// with a warning on stderr; if both fail NewAuditLogger returns nil.
func NewAuditLogger(projectRoot, globalDir string) *AuditLogger {
	local := openAuditFile(filepath.Join(projectRoot, ".grag"))
	global := openAuditFile(globalDir)
	if local == nil && global == nil {
		return nil
	}
	return &AuditLogger{local: local, global: global}
}

// Log writes entry to the log for its scope. Empty scope means local.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	if entry.Scope == "global" {
		a.global.write(entry)
		return
	}
	a.local.write(entry)
}

// Close closes both files. Safe to call on nil receiver or more than once.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	lerr := a.local.close()
	gerr := a.global.close()
	if lerr != nil {
		return lerr
	}
	return gerr
}

// sanitizeToolParams reduces tool parameters to what is safe to log.
//
// Numeric and enum parameters are logged by value. Free-text parameters
// (preset names, descriptions) are logged only as "(set)". Anything else is
// dropped. "_param_count" always records how many parameters were given.
func sanitizeToolParams(toolName string, params map[string]interface{}) map[string]string {
	if params == nil {
		return nil
	}

	safeValueParams := map[string]bool{
		"mode":     true,
		"strength": true,
		"lambda":   true,
		"delta":    true,
		"steps":    true,
		"layers":   true,
		"disabled": true,
		"action":   true,
	}
	presenceOnlyParams := map[string]bool{
		"preset":      true,
		"name":        true,
		"description": true,
	}

	result := make(map[string]string)
	count := 0
	for key, val := range params {
		if s, ok := val.(string); ok && s == "" {
			continue
		}
		count++
		switch {
		case safeValueParams[key]:
			result[key] = fmt.Sprintf("%v", val)
		case presenceOnlyParams[key]:
			result[key] = "(set)"
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", count)
	return result
}

// auditTool logs a tool invocation with the given scope.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string, scope string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	if scope == "" {
		scope = "local"
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		Scope:      scope,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
	s.logger.Debug("mcp tool call", "tool", toolName, "status", status, "duration", time.Since(start))
}
