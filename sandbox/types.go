package sandbox

// LanguageKind identifies a runtime language.
type LanguageKind string

// Known language kinds. A single engine instance accepts exactly one kind;
// requests for any other kind are rejected at session creation or run time.
const (
	LanguageJavaScript LanguageKind = "javascript"
	LanguageTypeScript LanguageKind = "typescript"
	LanguagePython     LanguageKind = "python"
)

// Language describes the language a caller wants code executed as.
type Language struct {
	Kind    LanguageKind
	Version *string
}

// Encoding identifies the transport encoding of uploaded file content.
type Encoding string

// Supported transport encodings.
const (
	EncodingUTF8   Encoding = "utf8"
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

// File is one source unit supplied by a caller. A nil Encoding means the
// content is already raw UTF-8 text.
type File struct {
	Name     string
	Content  []byte
	Encoding *Encoding
}

// EnvVar is one environment entry layered over the ambient environment of
// the child process.
type EnvVar struct {
	Key   string
	Value string
}

// Limits carries per-invocation resource limits. Only TimeMs is enforced;
// the remaining fields are accepted for forward compatibility and ignored,
// never rejected.
type Limits struct {
	TimeMs        *uint64
	MemoryBytes   *uint64
	FileSizeBytes *uint64
	MaxProcesses  *uint32
}

// StageResult is the captured outcome of one execution stage. A nil ExitCode
// means the process could not report an exit status.
type StageResult struct {
	Stdout   string
	Stderr   string
	ExitCode *int
	Signal   *string
}

// ExecResult is the outcome of a whole invocation. Compile is always nil for
// interpreter-only execution and MemoryBytes is never measured; both fields
// exist for interface compatibility with multi-stage languages.
type ExecResult struct {
	Compile     *StageResult
	Run         StageResult
	TimeMs      *uint64
	MemoryBytes *uint64
}
