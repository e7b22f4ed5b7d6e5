package venue

import "errors"

var (
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrOrderRejected         = errors.New("order rejected")
	ErrCancelFailed          = errors.New("cancel failed")
)

type OrderRejectedError struct {
	Reason string
}

func (e *OrderRejectedError) Error() string {
	if e.Reason == "" {
		return ErrOrderRejected.Error()
	}
	return ErrOrderRejected.Error() + ": " + e.Reason
}

func (e *OrderRejectedError) Is(target error) bool {
	return target == ErrOrderRejected
}

func Rejected(reason string) error {
	return &OrderRejectedError{Reason: reason}
}
