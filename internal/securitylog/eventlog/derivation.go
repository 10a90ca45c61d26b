package eventlog

import "net/http"

// Exchange is what a derivation can see: the request, the final response status
// and the decoded JSON request body (nil when absent or not a JSON object).
type Exchange struct {
	Request *http.Request
	Status  int
	Body    map[string]any
}

// Derivation is either a constant or a function of the exchange.
// The zero value is unset and resolves to the caller's fallback.
type Derivation[T any] struct {
	value   T
	compute func(*Exchange) T
	set     bool
}

// Const yields the same value for every request.
func Const[T any](v T) Derivation[T] {
	return Derivation[T]{value: v, set: true}
}

// Func computes the value per request.
func Func[T any](fn func(*Exchange) T) Derivation[T] {
	return Derivation[T]{compute: fn, set: fn != nil}
}

func (d Derivation[T]) IsSet() bool { return d.set }

// Resolve returns the derived value, or fallback when the derivation is unset.
func (d Derivation[T]) Resolve(x *Exchange, fallback T) T {
	if !d.set {
		return fallback
	}
	if d.compute != nil {
		return d.compute(x)
	}
	return d.value
}
