package extension

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/extkit/errors"
)

// Registry and lifecycle error codes.
const (
	CodeDuplicateType              apperrors.ErrorCode = "DUPLICATE_TYPE"
	CodeDuplicateTypeInterface     apperrors.ErrorCode = "DUPLICATE_TYPE_INTERFACE"
	CodeTypeClassMissing           apperrors.ErrorCode = "TYPE_CLASS_MISSING"
	CodeTypeInheritance            apperrors.ErrorCode = "TYPE_INHERITANCE"
	CodeTypeAttributeMissing       apperrors.ErrorCode = "TYPE_ATTRIBUTE_MISSING"
	CodeCapabilityMissing          apperrors.ErrorCode = "CAPABILITY_MISSING"
	CodeExtensionClassMissing      apperrors.ErrorCode = "EXTENSION_CLASS_MISSING"
	CodeExtensionInheritance       apperrors.ErrorCode = "EXTENSION_INHERITANCE"
	CodeExtensionAttributeMissing  apperrors.ErrorCode = "EXTENSION_ATTRIBUTE_MISSING"
	CodeDuplicateExtension         apperrors.ErrorCode = "DUPLICATE_EXTENSION"
	CodeTypeAttributeNotRegistered apperrors.ErrorCode = "TYPE_ATTRIBUTE_NOT_REGISTERED"
	CodeTypeInterfaceNotRegistered apperrors.ErrorCode = "TYPE_INTERFACE_NOT_REGISTERED"
	CodeNoMatchingExtensionType    apperrors.ErrorCode = "NO_MATCHING_EXTENSION_TYPE"
	CodeExtensionNotLoaded         apperrors.ErrorCode = "EXTENSION_NOT_LOADED"
	CodeExtensionSingleton         apperrors.ErrorCode = "EXTENSION_SINGLETON"
	CodeMissingDependencies        apperrors.ErrorCode = "MISSING_DEPENDENCIES"
	CodeInstantiationFailed        apperrors.ErrorCode = "INSTANTIATION_FAILED"
	CodeInstanceType               apperrors.ErrorCode = "INSTANCE_TYPE"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrDuplicateType              = apperrors.Sentinel(CodeDuplicateType)
	ErrDuplicateTypeInterface     = apperrors.Sentinel(CodeDuplicateTypeInterface)
	ErrTypeClassMissing           = apperrors.Sentinel(CodeTypeClassMissing)
	ErrTypeInheritance            = apperrors.Sentinel(CodeTypeInheritance)
	ErrTypeAttributeMissing       = apperrors.Sentinel(CodeTypeAttributeMissing)
	ErrCapabilityMissing          = apperrors.Sentinel(CodeCapabilityMissing)
	ErrExtensionClassMissing      = apperrors.Sentinel(CodeExtensionClassMissing)
	ErrExtensionInheritance       = apperrors.Sentinel(CodeExtensionInheritance)
	ErrExtensionAttributeMissing  = apperrors.Sentinel(CodeExtensionAttributeMissing)
	ErrDuplicateExtension         = apperrors.Sentinel(CodeDuplicateExtension)
	ErrTypeAttributeNotRegistered = apperrors.Sentinel(CodeTypeAttributeNotRegistered)
	ErrTypeInterfaceNotRegistered = apperrors.Sentinel(CodeTypeInterfaceNotRegistered)
	ErrNoMatchingExtensionType    = apperrors.Sentinel(CodeNoMatchingExtensionType)
	ErrExtensionNotLoaded         = apperrors.Sentinel(CodeExtensionNotLoaded)
	ErrExtensionSingleton         = apperrors.Sentinel(CodeExtensionSingleton)
	ErrMissingDependencies        = apperrors.Sentinel(CodeMissingDependencies)
	ErrInstantiationFailed        = apperrors.Sentinel(CodeInstantiationFailed)
	ErrInstanceType               = apperrors.Sentinel(CodeInstanceType)
)

// Detail keys carried by registry errors.
const (
	DetailPoint         = "point"
	DetailExtension     = "extension"
	DetailCapability    = "capability"
	DetailExistingPoint = "existing_point"
	DetailAccessor      = "accessor"
	DetailDependencies  = "dependencies"
	DetailExpectedType  = "expected_type"
	DetailActualType    = "actual_type"
)

// Accessors named by EXTENSION_SINGLETON errors.
const (
	AccessorGet    = "get"
	AccessorCreate = "create"
)

func newError(code apperrors.ErrorCode, status int, message string) *apperrors.AppError {
	return apperrors.New(code, message, status)
}

// --- point errors ---

func duplicateType(point string) *apperrors.AppError {
	return newError(CodeDuplicateType, http.StatusConflict,
		fmt.Sprintf("Extension type %s is already registered", point)).
		WithDetail(DetailPoint, point)
}

func typeClassMissing(point string) *apperrors.AppError {
	return newError(CodeTypeClassMissing, http.StatusUnprocessableEntity,
		fmt.Sprintf("Extension type %s is not defined", point)).
		WithDetail(DetailPoint, point)
}

func typeInheritance(point string) *apperrors.AppError {
	return newError(CodeTypeInheritance, http.StatusUnprocessableEntity,
		fmt.Sprintf("Extension type %s does not extend the base extension point", point)).
		WithDetail(DetailPoint, point)
}

func typeAttributeMissing(point string) *apperrors.AppError {
	return newError(CodeTypeAttributeMissing, http.StatusUnprocessableEntity,
		fmt.Sprintf("Extension type %s has no policy attached", point)).
		WithDetail(DetailPoint, point)
}

func capabilityMissing(point, capability string) *apperrors.AppError {
	return newError(CodeCapabilityMissing, http.StatusUnprocessableEntity,
		fmt.Sprintf("Extension type %s requires undefined capability %s", point, capability)).
		WithDetails(map[string]any{DetailPoint: point, DetailCapability: capability})
}

func duplicateTypeInterface(capability, point, existing string) *apperrors.AppError {
	return newError(CodeDuplicateTypeInterface, http.StatusConflict,
		fmt.Sprintf("Capability %s cannot be bound to %s, it is already bound to %s", capability, point, existing)).
		WithDetails(map[string]any{
			DetailCapability:    capability,
			DetailPoint:         point,
			DetailExistingPoint: existing,
		})
}

func typeAttributeNotRegistered(point string) *apperrors.AppError {
	return newError(CodeTypeAttributeNotRegistered, http.StatusNotFound,
		fmt.Sprintf("Extension type %s is not registered", point)).
		WithDetail(DetailPoint, point)
}

func typeInterfaceNotRegistered(capability string) *apperrors.AppError {
	return newError(CodeTypeInterfaceNotRegistered, http.StatusNotFound,
		fmt.Sprintf("No extension type is registered for capability %s", capability)).
		WithDetail(DetailCapability, capability)
}

func noMatchingExtensionType(extension string) *apperrors.AppError {
	return newError(CodeNoMatchingExtensionType, http.StatusNotFound,
		fmt.Sprintf("No registered extension type matches %s", extension)).
		WithDetail(DetailExtension, extension)
}

// --- extension errors ---

func extensionClassMissing(extension string) *apperrors.AppError {
	return newError(CodeExtensionClassMissing, http.StatusUnprocessableEntity,
		fmt.Sprintf("Extension %s is not defined", extension)).
		WithDetail(DetailExtension, extension)
}

func extensionInheritance(extension, point, capability string) *apperrors.AppError {
	return newError(CodeExtensionInheritance, http.StatusUnprocessableEntity,
		fmt.Sprintf("Extension %s does not implement %s", extension, capability)).
		WithDetails(map[string]any{
			DetailExtension:  extension,
			DetailPoint:      point,
			DetailCapability: capability,
		})
}

func extensionAttributeMissing(extension, point string) *apperrors.AppError {
	return newError(CodeExtensionAttributeMissing, http.StatusUnprocessableEntity,
		fmt.Sprintf("Extension %s does not have %s metadata", extension, point)).
		WithDetails(map[string]any{DetailExtension: extension, DetailPoint: point})
}

func duplicateExtension(extension, point string) *apperrors.AppError {
	return newError(CodeDuplicateExtension, http.StatusConflict,
		fmt.Sprintf("Extension %s is already registered against %s", extension, point)).
		WithDetails(map[string]any{DetailExtension: extension, DetailPoint: point})
}

// --- store errors ---

func extensionNotLoaded(extension string) *apperrors.AppError {
	return newError(CodeExtensionNotLoaded, http.StatusNotFound,
		fmt.Sprintf("Extension %s is not loaded", extension)).
		WithDetail(DetailExtension, extension)
}

// extensionSingleton reports use of the wrong accessor. accessor names the
// method that must be used instead.
func extensionSingleton(extension, accessor string) *apperrors.AppError {
	not := ""
	if accessor == AccessorCreate {
		not = "not "
	}
	return newError(CodeExtensionSingleton, http.StatusConflict,
		fmt.Sprintf("You must use the %s method for `%s` extension because it is %sa singleton.", accessor, extension, not)).
		WithDetails(map[string]any{DetailExtension: extension, DetailAccessor: accessor})
}

func missingDependencies(extension string, missing []string) *apperrors.AppError {
	return newError(CodeMissingDependencies, http.StatusFailedDependency,
		fmt.Sprintf("Could not create %s extension: Missing dependencies (%s)", extension, strings.Join(missing, ", "))).
		WithDetails(map[string]any{DetailExtension: extension, DetailDependencies: missing})
}

func instantiationFailed(extension string, cause error) *apperrors.AppError {
	return newError(CodeInstantiationFailed, http.StatusInternalServerError,
		fmt.Sprintf("Could not instantiate extension %s", extension)).
		WithDetail(DetailExtension, extension).
		WithCause(cause).
		MarkRetryable()
}

func instanceType(extension, expected string, actual any) *apperrors.AppError {
	return newError(CodeInstanceType, http.StatusInternalServerError,
		fmt.Sprintf("Extension %s is %T, not %s", extension, actual, expected)).
		WithDetails(map[string]any{
			DetailExtension:    extension,
			DetailExpectedType: expected,
			DetailActualType:   fmt.Sprintf("%T", actual),
		})
}

// MissingDependencyKeys returns the missing dependency keys carried by a
// MISSING_DEPENDENCIES error, or nil for any other error.
func MissingDependencyKeys(err error) []string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != CodeMissingDependencies {
		return nil
	}
	keys, _ := appErr.Details[DetailDependencies].([]string)
	return append([]string(nil), keys...)
}

// SingletonAccessor returns the accessor ("get" or "create") an
// EXTENSION_SINGLETON error says must be used, or "" for any other error.
func SingletonAccessor(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != CodeExtensionSingleton {
		return ""
	}
	accessor, _ := appErr.Details[DetailAccessor].(string)
	return accessor
}
