package errors

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

// Registered codes.
const (
	CodeNotObject     = "M001"
	CodeUnknownField  = "M002"
	CodeUnknownAction = "M003"

	CodeStorageRead   = "S001"
	CodeStorageWrite  = "S002"
	CodeStorageRemove = "S003"

	CodeDecode = "X001"
	CodeEncode = "X002"

	CodeDevtoolsConnect  = "D001"
	CodeDevtoolsProtocol = "D002"

	CodeConfigInvalid = "C001"
	CodeConfigBackend = "C002"

	CodeCommand = "C003"
)

// registry maps error codes to their templates.
var registry = map[string]Template{
	CodeNotObject: {
		Category:   CategoryMisuse,
		Message:    "Cannot patch primitive state",
		Suggestion: "Use Set with a Transform updater for non-object cells.",
	},
	CodeUnknownField: {
		Category:   CategoryMisuse,
		Message:    "Patch names an unknown or mistyped field",
		Suggestion: "Patch keys must match exported struct field names and value types.",
	},
	CodeUnknownAction: {
		Category: CategoryMisuse,
		Message:  "Action is not bound",
	},

	CodeStorageRead: {
		Category: CategoryStorage,
		Message:  "Failed to read persisted value",
	},
	CodeStorageWrite: {
		Category: CategoryStorage,
		Message:  "Failed to persist value",
	},
	CodeStorageRemove: {
		Category: CategoryStorage,
		Message:  "Failed to remove persisted value",
	},

	CodeDecode: {
		Category:   CategoryCodec,
		Message:    "Failed to decode stored value",
		Suggestion: "The stored text may have been written by another codec or an older schema.",
	},
	CodeEncode: {
		Category: CategoryCodec,
		Message:  "Failed to encode value",
	},

	CodeDevtoolsConnect: {
		Category:   CategoryDevtools,
		Message:    "Devtools inspector is not reachable",
		Suggestion: "Start one with `microscope inspect` or unset MICROSCOPE_DEVTOOLS_URL.",
	},
	CodeDevtoolsProtocol: {
		Category: CategoryDevtools,
		Message:  "Unexpected devtools message",
	},

	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	CodeConfigBackend: {
		Category:   CategoryConfig,
		Message:    "Unknown storage backend",
		Suggestion: "Valid backends are memory, sqlite and s3.",
	},
	CodeCommand: {
		Category: CategoryCLI,
		Message:  "Command failed",
	},
}

// Lookup returns the template for a code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
