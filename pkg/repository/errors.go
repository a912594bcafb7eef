package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

var (
	// ErrConfiguration classifies unbound document types and invalid store settings.
	ErrConfiguration = errors.New("repository configuration error")
	// ErrNotFound classifies a missing target document.
	ErrNotFound = errors.New("document not found")
	// ErrIntegrity classifies more than one document sharing an identifier.
	ErrIntegrity = errors.New("document integrity violation")
	// ErrStoreConnectivity classifies network, auth and timeout failures talking to the store.
	ErrStoreConnectivity = errors.New("store connectivity error")
	// ErrCancelled classifies caller-initiated cancellation.
	ErrCancelled = errors.New("operation cancelled")
	// ErrInvalidRequest classifies invalid caller arguments.
	ErrInvalidRequest = errors.New("invalid repository request")
)

// mongo server error codes that indicate an authentication or authorization failure.
var authErrorCodes = map[int]struct{}{
	11:   {}, // UserNotFound
	13:   {}, // Unauthorized
	18:   {}, // AuthenticationFailed
	8000: {}, // AtlasError
}

// OperationError carries the collection, operation and identifier of a failed call.
type OperationError struct {
	Collection string
	Op         string
	ID         string
	Err        error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" ")
	b.WriteString(e.Collection)
	if e.ID != "" {
		fmt.Fprintf(&b, " id=%s", e.ID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps err with operation context. It returns nil for a nil err.
func NewOperationError(collection, op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Collection: collection, Op: op, ID: id, Err: err}
}

// Classify maps a store error onto the repository taxonomy.
// ctx is the caller's context; a cancellation observed there wins over the raw store error.
// Errors that already carry a taxonomy sentinel are returned unchanged.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if isConnectivity(err) {
		return fmt.Errorf("%w: %w", ErrStoreConnectivity, err)
	}
	return err
}

func isClassified(err error) bool {
	for _, kind := range []error{ErrConfiguration, ErrNotFound, ErrIntegrity, ErrStoreConnectivity, ErrCancelled, ErrInvalidRequest} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func isConnectivity(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	var selectionErr topology.ServerSelectionError
	if errors.As(err, &selectionErr) {
		return true
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		for code := range authErrorCodes {
			if serverErr.HasErrorCode(code) {
				return true
			}
		}
	}
	return false
}
