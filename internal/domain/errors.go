package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound              = errors.New("domain: not found")
	ErrConflict              = errors.New("domain: conflict")
	ErrForbidden             = errors.New("domain: forbidden")
	ErrUnknownCollection     = errors.New("domain: collection not granted")
	ErrDisallowedFilterField = errors.New("domain: filter field not granted")
	ErrToolNotAllowed        = errors.New("domain: tool not allowed")
	ErrTenantMismatch        = errors.New("domain: owner scope mismatch")
	ErrInvalidPolicy         = errors.New("domain: invalid access policy")
	ErrDataAccess            = errors.New("domain: data access failed")
	ErrInternal              = errors.New("domain: internal error")
)

// ErrorKind is the wire-safe classification of a gateway failure. Only the
// kind and its fixed message ever cross the boundary to the caller.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindUnknownCollection     ErrorKind = "unknown_collection"
	KindDisallowedFilterField ErrorKind = "disallowed_filter_field"
	KindToolNotAllowed        ErrorKind = "tool_not_allowed"
	KindTenantMismatch        ErrorKind = "tenant_mismatch"
	KindPolicyNotFound        ErrorKind = "policy_not_found"
	KindDataAccess            ErrorKind = "data_access_error"
	KindInternal              ErrorKind = "internal_error"
)

// safeMessages holds the only error text the gateway is permitted to return.
// Messages are fixed and carry no caller- or store-supplied content.
var safeMessages = map[ErrorKind]string{
	KindUnknownCollection:     "the requested collection is not granted to this agent",
	KindDisallowedFilterField: "a requested field is not granted to this agent",
	KindToolNotAllowed:        "the requested tool is not allowed for this agent",
	KindTenantMismatch:        "the request is scoped to a different owner",
	KindPolicyNotFound:        "no access policy exists for this agent",
	KindDataAccess:            "the data store could not complete the query",
	KindInternal:              "an internal error occurred",
}

// Kind classifies err into its wire kind. Unrecognized errors are internal:
// anything unanticipated must not leak its text to the caller.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnknownCollection):
		return KindUnknownCollection
	case errors.Is(err, ErrDisallowedFilterField):
		return KindDisallowedFilterField
	case errors.Is(err, ErrToolNotAllowed):
		return KindToolNotAllowed
	case errors.Is(err, ErrTenantMismatch):
		return KindTenantMismatch
	case errors.Is(err, ErrNotFound):
		return KindPolicyNotFound
	case errors.Is(err, ErrDataAccess):
		return KindDataAccess
	default:
		return KindInternal
	}
}

// SafeMessage returns the fixed client-facing message for a kind.
func SafeMessage(kind ErrorKind) string {
	return safeMessages[kind]
}

// IsDenial reports whether the kind is a policy denial, as opposed to an
// execution failure. Denials are audited with outcome "denied".
func (k ErrorKind) IsDenial() bool {
	switch k {
	case KindUnknownCollection, KindDisallowedFilterField, KindToolNotAllowed,
		KindTenantMismatch, KindPolicyNotFound:
		return true
	default:
		return false
	}
}
