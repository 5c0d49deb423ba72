package services

import (
	"fmt"
	"net/http"
)

// Error codes. Every distinct failure condition carries its own code;
// codes are part of the API contract and must never be reused.
const (
	CodeNameRequired      = "ORG_NAME_REQUIRED"
	CodeTypeInvalid       = "ORG_TYPE_INVALID"
	CodeStatusInvalid     = "ORG_STATUS_INVALID"
	CodeAttrKeyRequired   = "ORG_ATTR_KEY_REQUIRED"
	CodeAttrValueRequired = "ORG_ATTR_VALUE_REQUIRED"
	CodeAttrKeyDuplicate  = "ORG_ATTR_KEY_DUPLICATE"
	CodeAttrNotFound      = "ORG_ATTR_NOT_FOUND"
	CodeNotFound          = "ORG_NOT_FOUND"
	CodeParentNotFound    = "ORG_PARENT_NOT_FOUND"
	CodeParentDisabled    = "ORG_PARENT_DISABLED"
	CodeRootExists        = "ORG_ROOT_EXISTS"
	CodeNameConflict      = "ORG_NAME_CONFLICT"
	CodeHasChildren       = "ORG_HAS_CHILDREN"
	CodeActiveChildren    = "ORG_ACTIVE_CHILDREN"
	CodeRootImmutable     = "ORG_ROOT_IMMUTABLE"
	CodeVersionImmutable  = "ORG_VERSION_IMMUTABLE"
	CodeVersionInvalid    = "ORG_VERSION_INVALID"
	CodePatchOpInvalid    = "ORG_PATCH_OP_INVALID"
	CodePatchPathInvalid  = "ORG_PATCH_PATH_INVALID"
	CodePatchValueMissing = "ORG_PATCH_VALUE_MISSING"
	CodePatchValueExtra   = "ORG_PATCH_VALUE_EXTRA"
	CodeForbidden         = "ORG_FORBIDDEN"
	CodeInvalidFilter     = "ORG_INVALID_FILTER"
	CodeInvalidCursor     = "ORG_INVALID_CURSOR"
	CodeMutationVetoed    = "ORG_MUTATION_VETOED"
	CodeRealmNotFound     = "ORG_REALM_NOT_FOUND"

	CodeStoreFailure        = "ORG_STORE_FAILURE"
	CodeProvisionFailure    = "ORG_PROVISION_FAILURE"
	CodeCompensationFailure = "ORG_COMPENSATION_FAILURE"
	CodeAuthzFailure        = "ORG_AUTHZ_FAILURE"
)

// ServiceError is the single error currency of the orchestration layer.
// Client statuses (4xx) mean the request must change before a retry can
// succeed; server statuses (5xx) wrap a cause and are retryable by the
// caller, never by this layer.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func (e *ServiceError) IsClient() bool {
	return e.Status >= 400 && e.Status < 500
}

func clientError(status int, code, message string) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message}
}

func badRequest(code, message string) *ServiceError {
	return clientError(http.StatusBadRequest, code, message)
}

func notFound(code, message string) *ServiceError {
	return clientError(http.StatusNotFound, code, message)
}

func conflict(code, message string) *ServiceError {
	return clientError(http.StatusConflict, code, message)
}

func unprocessable(code, message string) *ServiceError {
	return clientError(http.StatusUnprocessableEntity, code, message)
}

func forbidden(message string) *ServiceError {
	return clientError(http.StatusForbidden, CodeForbidden, message)
}

func serverError(code, message string, cause error) *ServiceError {
	return &ServiceError{Status: http.StatusInternalServerError, Code: code, Message: message, Cause: cause}
}
