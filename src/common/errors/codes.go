package errors

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeAlreadyExists  Code = "already_exists"
	CodeInvalidRequest Code = "invalid_request"
	CodeUnavailable    Code = "unavailable"
	CodeForbidden      Code = "forbidden"
	CodeInternal       Code = "internal_error"
)

// Exit statuses reported by the CLIs
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ============================================================================
// Product Resolution Errors
// ============================================================================

var (
	// ErrUnknownProduct is returned when no repository URL can be derived
	// for the requested product
	ErrUnknownProduct = New(DomainProduct, CodeNotFound, ExitFailure,
		"Unknown product")

	// ErrMissingArguments is returned when product or version is missing
	ErrMissingArguments = New(DomainProduct, CodeInvalidRequest, ExitUsage,
		"You must specify a product and a version")
)

// ============================================================================
// Fetch Errors
// ============================================================================

var (
	// ErrRefNotFound is returned when the remote tag or branch does not exist
	ErrRefNotFound = New(DomainFetch, CodeNotFound, ExitFailure,
		"Remote reference not found")

	// ErrTransferFailed is returned when the download or checkout fails
	ErrTransferFailed = New(DomainFetch, CodeUnavailable, ExitFailure,
		"Transfer failed")

	// ErrBadArchive is returned when an archive cannot be expanded
	ErrBadArchive = New(DomainFetch, CodeInvalidRequest, ExitFailure,
		"Could not expand product archive")
)

// ============================================================================
// Build Errors
// ============================================================================

var (
	// ErrInstallDirExists is returned when the install directory already
	// exists and --force was not given
	ErrInstallDirExists = New(DomainBuild, CodeAlreadyExists, ExitFailure,
		"Install directory already exists")

	// ErrBuildFailed is returned when a build command exits nonzero
	ErrBuildFailed = New(DomainBuild, CodeInternal, ExitFailure,
		"Build command failed")
)

// ============================================================================
// Module Errors
// ============================================================================

var (
	// ErrModulesNotConfigured is returned when the Modules infrastructure
	// cannot be located via MODULESHOME
	ErrModulesNotConfigured = New(DomainModule, CodeUnavailable, ExitFailure,
		"You do not appear to have Modules set up")

	// ErrModuleWriteFailed is returned when the module file cannot be written
	ErrModuleWriteFailed = New(DomainModule, CodeInternal, ExitFailure,
		"Could not write module file")
)

// ============================================================================
// Permission Errors
// ============================================================================

var (
	// ErrHomeDirectory is returned when the permission fixer target resolves
	// to the invoking user's home directory
	ErrHomeDirectory = New(DomainPerms, CodeForbidden, ExitFailure,
		"Refusing to operate on a home directory")

	// ErrUnknownGroup is returned when the collaboration group does not exist
	ErrUnknownGroup = New(DomainPerms, CodeNotFound, ExitFailure,
		"Unknown group")

	// ErrMissingTool is returned when a required external tool is unavailable
	ErrMissingTool = New(DomainPerms, CodeUnavailable, ExitFailure,
		"Required external tool not found")
)

// ============================================================================
// Configuration Errors
// ============================================================================

var (
	// ErrBadConfig is returned when a configuration or override file
	// cannot be parsed
	ErrBadConfig = New(DomainConfig, CodeInvalidRequest, ExitUsage,
		"Could not parse configuration file")

	// ErrMissingRoot is returned when no install root can be determined
	ErrMissingRoot = New(DomainConfig, CodeInvalidRequest, ExitFailure,
		"AURIGA_PRODUCT_ROOT is missing or not set")
)
