package taxonomy

// Policy is the recovery decision for one code.
type Policy struct {
	Code       Code     `json:"code"`
	RetrySafe  bool     `json:"retrySafe"`
	MaxRetries int      `json:"maxRetries"`
	Strategy   Strategy `json:"strategy"`
	Jitter     bool     `json:"jitter"`
}

// Unbounded reports whether retries continue until the caller gives up.
func (p Policy) Unbounded() bool { return p.MaxRetries == Unbounded }

// AllowsRetry reports whether another attempt may follow attempt number n (0-based).
func (p Policy) AllowsRetry(n int) bool {
	if !p.RetrySafe {
		return false
	}
	return p.Unbounded() || n < p.MaxRetries
}

// Resolve returns the recovery policy for code. Codes outside the catalog
// resolve to the non-retryable Unknown policy.
func Resolve(code Code) Policy {
	e, ok := Lookup(code)
	if !ok {
		e = Unknown
	}
	return Policy{
		Code:       e.Code,
		RetrySafe:  e.RetrySafe,
		MaxRetries: e.MaxRetries,
		Strategy:   e.Strategy,
		Jitter:     e.Jitter(),
	}
}

// canonical picks one representative per status. Several codes share a
// status, so this mapping is lossy and only used when no precise code is known.
var canonical = map[int]Code{
	402: FinInsufficientBalance,
	401: SecInvalidToken,
	403: SecInsufficientPermissions,
	404: ResNotFound,
	409: StateConflict,
	422: ValSchemaInvalid,
	429: ExtRateLimited,
	503: ExtPlatformUnavailable,
	504: NetTimeout,
}

// Classify infers a catalog code from a raw status. Statuses without a
// canonical code yield UnknownCode.
func Classify(status int) Code {
	if code, ok := canonical[status]; ok {
		return code
	}
	return UnknownCode
}

// ClassifyCategory is Classify plus the code's category.
func ClassifyCategory(status int) (Category, Code) {
	code := Classify(status)
	if code == UnknownCode {
		return CategoryUnknown, UnknownCode
	}
	return catalog[code].Category, code
}
