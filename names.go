package schemadrift

// Schema names.
const (
	// SchemaPublic is the schema unqualified queries target.
	SchemaPublic = "public"
)

// Report format names.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatYAML     = "yaml"
	FormatTree     = "tree"
)

// Severity threshold names accepted by fail-on.
const (
	FailOnCritical = "critical"
	FailOnHigh     = "high"
	FailOnMedium   = "medium"
	FailOnLow      = "low"
	FailOnNone     = "none"
)

// DefaultExtensions are the source file extensions scanned when none are configured.
var DefaultExtensions = []string{"ts", "tsx"}

// DefaultSkipDirs are infrastructure directories never scanned.
var DefaultSkipDirs = []string{"node_modules", ".next", ".git", "dist", "build", "coverage"}

// DefaultReceivers are variable names conventionally bound to query results.
var DefaultReceivers = []string{"row", "data", "result"}

// DefaultSchemaPath is the conventional location of the generated type file.
const DefaultSchemaPath = "lib/types/database.types.ts"
