package taxonomy

// Catalog codes.
const (
	ExtPlatformUnavailable Code = "EXT_PLATFORM_UNAVAILABLE"
	ExtRateLimited         Code = "EXT_RATE_LIMITED"
	ExtInvalidPlatform     Code = "EXT_INVALID_PLATFORM"
	ExtAuthFailed          Code = "EXT_AUTH_FAILED"
	ExtForbidden           Code = "EXT_FORBIDDEN"

	ValSchemaInvalid             Code = "VAL_SCHEMA_INVALID"
	ValEngagementFormulaMismatch Code = "VAL_ENGAGEMENT_FORMULA_MISMATCH"
	ValNegativeEngagement        Code = "VAL_NEGATIVE_ENGAGEMENT"
	ValTimestampInvalid          Code = "VAL_TIMESTAMP_INVALID"
	ValMissingRequiredField      Code = "VAL_MISSING_REQUIRED_FIELD"
	ValTypeMismatch              Code = "VAL_TYPE_MISMATCH"

	ResNotFound       Code = "RES_NOT_FOUND"
	ResAlreadyExists  Code = "RES_ALREADY_EXISTS"
	ResQuotaExceeded  Code = "RES_QUOTA_EXCEEDED"
	ResResourceLocked Code = "RES_RESOURCE_LOCKED"

	StateInvalidTransition Code = "STATE_INVALID_TRANSITION"
	StateConflict          Code = "STATE_CONFLICT"
	StateSLAExceeded       Code = "STATE_SLA_EXCEEDED"

	SecInvalidToken            Code = "SEC_INVALID_TOKEN"
	SecTokenExpired            Code = "SEC_TOKEN_EXPIRED"
	SecInsufficientPermissions Code = "SEC_INSUFFICIENT_PERMISSIONS"
	SecSignatureInvalid        Code = "SEC_SIGNATURE_INVALID"
	SecChecksumMismatch        Code = "SEC_CHECKSUM_MISMATCH"
	SecAuditTamperDetected     Code = "SEC_AUDIT_TAMPER_DETECTED"

	PlatPublishFailed    Code = "PLAT_PUBLISH_FAILED"
	PlatDuplicateContent Code = "PLAT_DUPLICATE_CONTENT"
	PlatContentModerated Code = "PLAT_CONTENT_MODERATED"
	PlatAccountSuspended Code = "PLAT_ACCOUNT_SUSPENDED"

	FinInsufficientBalance     Code = "FIN_INSUFFICIENT_BALANCE"
	FinTransactionFailed       Code = "FIN_TRANSACTION_FAILED"
	FinWalletError             Code = "FIN_WALLET_ERROR"
	FinInvalidWalletAddress    Code = "FIN_INVALID_WALLET_ADDRESS"
	FinCurrencyConversionError Code = "FIN_CURRENCY_CONVERSION_ERROR"

	NetTimeout               Code = "NET_TIMEOUT"
	NetConnectionRefused     Code = "NET_CONNECTION_REFUSED"
	NetDNSFailure            Code = "NET_DNS_FAILURE"
	NetTLSCertificateInvalid Code = "NET_TLS_CERTIFICATE_INVALID"
)

// Skill-level codes reported by individual skills.
const (
	PlatformUnavailable Code = "PLATFORM_UNAVAILABLE"
	RateLimited         Code = "RATE_LIMITED"
	InvalidPlatform     Code = "INVALID_PLATFORM"
	ValidationFailed    Code = "VALIDATION_FAILED"
	Timeout             Code = "TIMEOUT"
	NetworkError        Code = "NETWORK_ERROR"
	SchemaInvalid       Code = "SCHEMA_INVALID"
	InvalidInput        Code = "INVALID_INPUT"
	InvalidGoals        Code = "INVALID_GOALS"
	FilterTimeout       Code = "FILTER_TIMEOUT"
	LLMError            Code = "LLM_ERROR"
	ResourceUnavailable Code = "RESOURCE_UNAVAILABLE"
	CircuitOpen         Code = "CIRCUIT_OPEN"
)

// UnknownCode is returned by Classify when a status has no canonical code.
const UnknownCode Code = "UNKNOWN_ERROR"

// Unknown is the sentinel entry for codes and statuses outside the catalog.
var Unknown = Entry{
	Code:     UnknownCode,
	Category: CategoryUnknown,
	Status:   500,
	Strategy: StrategyEscalate,
	Message:  "Unclassified error",
}

var catalogEntries = []Entry{
	{ExtPlatformUnavailable, CategoryExternal, 503, true, 3, StrategyRetryWithBackoff, "External platform is unavailable", ""},
	{ExtRateLimited, CategoryExternal, 429, true, 3, StrategyBackoffWithJitter, "Rate limit exceeded", ""},
	{ExtInvalidPlatform, CategoryExternal, 400, false, 0, StrategyReject, "Unsupported platform", ""},
	{ExtAuthFailed, CategoryExternal, 401, false, 0, StrategyRefreshCredentials, "Authentication with external platform failed", ""},
	{ExtForbidden, CategoryExternal, 403, false, 0, StrategyCheckPermissions, "Access to external resource forbidden", ""},

	{ValSchemaInvalid, CategoryValidation, 422, false, 0, StrategyReject, "Payload does not match schema", ""},
	{ValEngagementFormulaMismatch, CategoryValidation, 422, false, 0, StrategyReject, "Engagement score does not match formula", ""},
	{ValNegativeEngagement, CategoryValidation, 422, false, 0, StrategyClampAndWarn, "Engagement metric is negative", ""},
	{ValTimestampInvalid, CategoryValidation, 422, false, 0, StrategyReject, "Timestamp is invalid", ""},
	{ValMissingRequiredField, CategoryValidation, 422, false, 0, StrategyReject, "Required field is missing", ""},
	{ValTypeMismatch, CategoryValidation, 422, false, 0, StrategyCoerceOrReject, "Field has the wrong type", ""},

	{ResNotFound, CategoryResource, 404, false, 0, StrategyReject, "Resource not found", ""},
	{ResAlreadyExists, CategoryResource, 409, false, 0, StrategyReturnExisting, "Resource already exists", ""},
	{ResQuotaExceeded, CategoryResource, 429, false, 0, StrategyReject, "Resource quota exceeded", ""},
	{ResResourceLocked, CategoryResource, 423, true, 3, StrategyRetryWithBackoff, "Resource is locked", ""},

	{StateInvalidTransition, CategoryState, 409, false, 0, StrategyReject, "Invalid state transition", ""},
	{StateConflict, CategoryState, 409, true, Unbounded, StrategyRefreshAndRetry, "Concurrent modification conflict", ""},
	{StateSLAExceeded, CategoryState, 504, false, 0, StrategyEscalate, "Operation exceeded its SLA", ""},

	{SecInvalidToken, CategorySecurity, 401, false, 0, StrategyRequestNewToken, "Invalid token", ""},
	{SecTokenExpired, CategorySecurity, 401, false, 0, StrategyRequestFreshApproval, "Token expired", ""},
	{SecInsufficientPermissions, CategorySecurity, 403, false, 0, StrategyCheckRBAC, "Insufficient permissions", ""},
	{SecSignatureInvalid, CategorySecurity, 401, false, 0, StrategyReject, "Signature is invalid", ""},
	{SecChecksumMismatch, CategorySecurity, 422, false, 0, StrategyReject, "Checksum mismatch", ""},
	{SecAuditTamperDetected, CategorySecurity, 500, false, 0, StrategyHaltAndEscalate, "Audit log tampering detected", ""},

	{PlatPublishFailed, CategoryPlatform, 502, true, 3, StrategyRetryWithBackoff, "Publishing to platform failed", ""},
	{PlatDuplicateContent, CategoryPlatform, 409, false, 0, StrategyReturnExisting, "Content already published", ""},
	{PlatContentModerated, CategoryPlatform, 451, false, 0, StrategyAlertAndRevise, "Content rejected by platform moderation", ""},
	{PlatAccountSuspended, CategoryPlatform, 403, false, 0, StrategyHaltAndEscalate, "Platform account suspended", ""},

	{FinInsufficientBalance, CategoryFinancial, 402, false, 0, StrategyRejectAndEscalate, "Insufficient balance", ""},
	{FinTransactionFailed, CategoryFinancial, 502, true, 3, StrategyRetryWithBackoff, "Transaction failed", ""},
	{FinWalletError, CategoryFinancial, 500, true, 2, StrategyRetryWithBackoff, "Wallet error", ""},
	{FinInvalidWalletAddress, CategoryFinancial, 400, false, 0, StrategyReject, "Invalid wallet address", ""},
	{FinCurrencyConversionError, CategoryFinancial, 500, true, 2, StrategyUseCachedRate, "Currency conversion failed", ""},

	{NetTimeout, CategoryNetwork, 504, true, 3, StrategyRetryWithBackoff, "Request timed out", ""},
	{NetConnectionRefused, CategoryNetwork, 503, true, 3, StrategyRetryWithBackoff, "Connection refused", ""},
	{NetDNSFailure, CategoryNetwork, 503, true, 3, StrategyRetryWithBackoff, "DNS resolution failed", ""},
	{NetTLSCertificateInvalid, CategoryNetwork, 495, false, 0, StrategyReject, "TLS certificate invalid", ""},
}

// aliasEntries carry their own status, retry policy and strategy; the
// category is inherited from Base at build time.
var aliasEntries = []Entry{
	{Code: PlatformUnavailable, Status: 503, RetrySafe: true, MaxRetries: 3, Strategy: StrategyRetryWithBackoff, Message: "Platform temporarily unavailable", Base: ExtPlatformUnavailable},
	{Code: RateLimited, Status: 429, RetrySafe: true, MaxRetries: 3, Strategy: StrategyBackoffWithJitter, Message: "Rate limit exceeded", Base: ExtRateLimited},
	{Code: InvalidPlatform, Status: 400, Strategy: StrategyReject, Message: "Unsupported platform", Base: ExtInvalidPlatform},
	{Code: ValidationFailed, Status: 422, Strategy: StrategyReject, Message: "Malformed response", Base: ValSchemaInvalid},
	{Code: Timeout, Status: 504, RetrySafe: true, MaxRetries: 3, Strategy: StrategyRetryWithBackoff, Message: "Request timed out", Base: NetTimeout},
	{Code: NetworkError, Status: 503, RetrySafe: true, MaxRetries: 3, Strategy: StrategyRetryWithBackoff, Message: "Network error", Base: NetConnectionRefused},
	{Code: SchemaInvalid, Status: 422, Strategy: StrategyReject, Message: "Payload does not match schema", Base: ValSchemaInvalid},
	{Code: InvalidInput, Status: 400, Strategy: StrategyReject, Message: "Invalid input", Base: ValSchemaInvalid},
	{Code: InvalidGoals, Status: 422, Strategy: StrategyReject, Message: "Invalid campaign goals", Base: ValSchemaInvalid},
	{Code: FilterTimeout, Status: 504, Strategy: StrategyReturnPartial, Message: "Filtering timed out, returning partial results", Base: NetTimeout},
	{Code: LLMError, Status: 503, Strategy: StrategyFallbackModel, Message: "LLM provider error", Base: ExtPlatformUnavailable},
	{Code: ResourceUnavailable, Status: 503, Strategy: StrategyFallbackResource, Message: "Resource unavailable", Base: ExtPlatformUnavailable},
	{Code: CircuitOpen, Status: 503, Strategy: StrategyEscalate, Message: "Circuit breaker open", Base: StateSLAExceeded},
}
