package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidBytecode is returned for malformed compiled bytecode
	ErrInvalidBytecode = errors.New("invalid bytecode")

	// ErrInitialization is returned when a deployed instance could not be initialized
	ErrInitialization = errors.New("initialization failed")

	// ErrManifestResolution is returned when the upgrade manifest has no matching implementation
	ErrManifestResolution = errors.New("implementation not found in upgrade manifest")

	// ErrStoreIO is returned when the deployment registry cannot be read or written
	ErrStoreIO = errors.New("registry store I/O failure")

	// ErrVerification is returned when source verification fails
	ErrVerification = errors.New("verification failed")

	// ErrProxyConstructor is returned when the proxy creation transaction
	// itself fails, which includes a revert of the initializer it runs
	ErrProxyConstructor = errors.New("proxy constructor failed")
)

// InvalidBytecodeError reports bytecode that cannot be decoded or fingerprinted
type InvalidBytecodeError struct {
	Reason string
}

func (e *InvalidBytecodeError) Error() string {
	return fmt.Sprintf("invalid bytecode: %s", e.Reason)
}

func (e *InvalidBytecodeError) Is(target error) bool { return target == ErrInvalidBytecode }

// InitializationError reports an instance whose initializer failed. For a
// simple deployment the chain holds an unusable contract at Address. For an
// upgradable one the initializer runs in the proxy constructor, so Address is
// zero and no proxy exists. No record is written in either case.
type InitializationError struct {
	Network      string
	ContractType string
	Address      common.Address
	Method       string
	Err          error
}

func (e *InitializationError) Error() string {
	if e.Address == (common.Address{}) {
		return fmt.Sprintf("%s on %s was not deployed: proxy constructor calling %s() failed: %v",
			e.ContractType, e.Network, e.Method, e.Err)
	}
	return fmt.Sprintf("%s on %s deployed at %s but %s() failed: %v",
		e.ContractType, e.Network, e.Address.Hex(), e.Method, e.Err)
}

func (e *InitializationError) Is(target error) bool { return target == ErrInitialization }
func (e *InitializationError) Unwrap() error        { return e.Err }

// ManifestResolutionError reports a fingerprint missing from the upgrade manifest
type ManifestResolutionError struct {
	Network     string
	Fingerprint string
	Err         error
}

func (e *ManifestResolutionError) Error() string {
	msg := fmt.Sprintf("no implementation with version %s in the %s upgrade manifest", e.Fingerprint, e.Network)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ManifestResolutionError) Is(target error) bool { return target == ErrManifestResolution }
func (e *ManifestResolutionError) Unwrap() error        { return e.Err }

// StoreIOError reports a registry read or write failure
type StoreIOError struct {
	Network string
	Op      string // "load" or "append"
	Err     error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("registry %s for %s failed: %v", e.Op, e.Network, e.Err)
}

func (e *StoreIOError) Is(target error) bool { return target == ErrStoreIO }
func (e *StoreIOError) Unwrap() error        { return e.Err }

// VerificationError reports a failed source verification attempt
type VerificationError struct {
	Address common.Address
	Err     error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification of %s failed: %v", e.Address.Hex(), e.Err)
}

func (e *VerificationError) Is(target error) bool { return target == ErrVerification }
func (e *VerificationError) Unwrap() error        { return e.Err }

// ReleaseError wraps a fatal pipeline error with what an operator needs to
// recover by hand
type ReleaseError struct {
	Stage        string
	Network      string
	ContractType string
	Fingerprint  string
	Address      *common.Address
	Err          error
}

func (e *ReleaseError) Error() string {
	parts := []string{
		fmt.Sprintf("network=%s", e.Network),
		fmt.Sprintf("contract=%s", e.ContractType),
	}
	if e.Fingerprint != "" {
		parts = append(parts, fmt.Sprintf("version=%s", e.Fingerprint))
	}
	if e.Address != nil {
		parts = append(parts, fmt.Sprintf("address=%s", e.Address.Hex()))
	}
	return fmt.Sprintf("release failed during %s (%s): %v", e.Stage, strings.Join(parts, " "), e.Err)
}

func (e *ReleaseError) Unwrap() error { return e.Err }
