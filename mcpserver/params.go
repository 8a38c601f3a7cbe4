package mcpserver

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/isdmx/execbox/sandbox"
)

// parseLanguage extracts the language parameter and its optional version
func parseLanguage(request mcp.CallToolRequest) (sandbox.Language, error) {
	kind, err := request.RequireString("language")
	if err != nil {
		return sandbox.Language{}, fmt.Errorf("language parameter is required: %w", err)
	}

	language := sandbox.Language{Kind: sandbox.LanguageKind(kind)}
	if version := request.GetString("version", ""); version != "" {
		language.Version = &version
	}
	return language, nil
}

// parseSession extracts the session handle parameter
func parseSession(request mcp.CallToolRequest) (uint64, error) {
	handle, err := request.RequireInt("session")
	if err != nil {
		return 0, fmt.Errorf("session parameter is required: %w", err)
	}
	if handle < 0 {
		return 0, fmt.Errorf("session parameter must be non-negative")
	}
	return uint64(handle), nil
}

// parseRunOptions extracts the optional execution parameters shared by
// run_code and session_run
func parseRunOptions(request mcp.CallToolRequest) (args []string, stdin *string, env []sandbox.EnvVar, limits *sandbox.Limits, err error) {
	arguments := request.GetArguments()

	args = request.GetStringSlice("args", nil)
	stdin = optionalString(arguments, "stdin")

	env, err = parseEnv(arguments["env"])
	if err != nil {
		return nil, nil, nil, nil, err
	}

	limits, err = parseLimits(arguments["limits"])
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return args, stdin, env, limits, nil
}

// optionalString distinguishes an absent parameter from an empty string
func optionalString(arguments map[string]any, key string) *string {
	raw, ok := arguments[key]
	if !ok {
		return nil
	}
	text, ok := raw.(string)
	if !ok {
		return nil
	}
	return &text
}

func parseFiles(raw any) ([]sandbox.File, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("files parameter must be an array of objects")
	}

	files := make([]sandbox.File, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("files entries must be objects")
		}
		file, err := parseFile(obj)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func parseFile(obj map[string]any) (sandbox.File, error) {
	name, ok := obj["name"].(string)
	if !ok || name == "" {
		return sandbox.File{}, fmt.Errorf("file name must be a non-empty string")
	}
	content, ok := obj["content"].(string)
	if !ok {
		return sandbox.File{}, fmt.Errorf("file content must be a string")
	}

	file := sandbox.File{Name: name, Content: []byte(content)}
	if raw, present := obj["encoding"]; present && raw != nil {
		enc, ok := raw.(string)
		if !ok {
			return sandbox.File{}, fmt.Errorf("file encoding must be a string")
		}
		encoding := sandbox.Encoding(enc)
		file.Encoding = &encoding
	}
	return file, nil
}

func parseEnv(raw any) ([]sandbox.EnvVar, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("env parameter must be an object of string values")
	}

	env := make([]sandbox.EnvVar, 0, len(obj))
	for key, value := range obj {
		text, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("env value for %q must be a string", key)
		}
		env = append(env, sandbox.EnvVar{Key: key, Value: text})
	}
	return env, nil
}

// parseLimits accepts every known limit field; unenforced fields are carried
// through to the engine, which ignores them
func parseLimits(raw any) (*sandbox.Limits, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("limits parameter must be an object")
	}

	limits := &sandbox.Limits{}
	var err error
	if limits.TimeMs, err = uintField(obj, "time_ms"); err != nil {
		return nil, err
	}
	if limits.MemoryBytes, err = uintField(obj, "memory_bytes"); err != nil {
		return nil, err
	}
	if limits.FileSizeBytes, err = uintField(obj, "file_size_bytes"); err != nil {
		return nil, err
	}

	maxProcesses, err := uintField(obj, "max_processes")
	if err != nil {
		return nil, err
	}
	if maxProcesses != nil {
		value := uint32(*maxProcesses)
		limits.MaxProcesses = &value
	}

	return limits, nil
}

func uintField(obj map[string]any, key string) (*uint64, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return nil, nil
	}
	// JSON numbers arrive as float64
	num, ok := raw.(float64)
	if !ok || num < 0 {
		return nil, fmt.Errorf("limits.%s must be a non-negative number", key)
	}
	value := uint64(num)
	return &value, nil
}

// stagePayload renders a StageResult for the boundary
func stagePayload(stage sandbox.StageResult) map[string]any {
	payload := map[string]any{
		"stdout": stage.Stdout,
		"stderr": stage.Stderr,
	}
	if stage.ExitCode != nil {
		payload["exit_code"] = *stage.ExitCode
	}
	if stage.Signal != nil {
		payload["signal"] = *stage.Signal
	}
	return payload
}

// execResultPayload renders an ExecResult for the boundary
func execResultPayload(result sandbox.ExecResult) map[string]any {
	payload := map[string]any{
		"run": stagePayload(result.Run),
	}
	if result.Compile != nil {
		payload["compile"] = stagePayload(*result.Compile)
	}
	if result.TimeMs != nil {
		payload["time_ms"] = *result.TimeMs
	}
	if result.MemoryBytes != nil {
		payload["memory_bytes"] = *result.MemoryBytes
	}
	return payload
}
