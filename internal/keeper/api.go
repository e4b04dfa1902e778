package keeper

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/kelsos/keeper-sync/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CodeNotAuthorized is reported while the extension is reachable but the
// application has not been granted access yet.
const CodeNotAuthorized = "14"

type UpdateHandler func(state models.PublicState)

// API is the surface of the Waves Keeper extension.
type API interface {
	// Initialize resolves once the extension finished its own startup.
	Initialize(ctx context.Context) error
	PublicState(ctx context.Context) (*models.PublicState, error)
	// OnUpdate registers a handler for wallet state changes and returns its unsubscribe func.
	OnUpdate(handler UpdateHandler) func()
	// SignAndPublishTransaction returns the signed transaction as a JSON string.
	SignAndPublishTransaction(ctx context.Context, tx models.TransactionRequest) (string, error)
}

// Detector looks up the extension handle. ok is false while it is absent.
type Detector func(ctx context.Context) (api API, ok bool)

// Error is a failure reported by the extension itself.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("keeper error %s: %s", e.Code, e.Message)
}

// UnmarshalJSON accepts numeric and string codes.
func (e *Error) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    interface{} `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Code = ""
	if raw.Code != nil {
		e.Code = fmt.Sprint(raw.Code)
	}
	e.Message = raw.Message
	e.Data = raw.Data
	return nil
}

// AsError extracts an extension error from err.
func AsError(err error) (*Error, bool) {
	var keeperErr *Error
	if errors.As(err, &keeperErr) {
		return keeperErr, true
	}
	return nil, false
}

func IsNotAuthorized(err error) bool {
	keeperErr, ok := AsError(err)
	return ok && keeperErr.Code == CodeNotAuthorized
}
