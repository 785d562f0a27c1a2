package dfile

// Opt is a per-file configuration value: either a constant or a value
// computed from the file it applies to, resolved at the point of use.
// The zero Opt resolves to T's zero value.
type Opt[T any] struct {
	value T
	fn    func(*File) T
	set   bool
}

// Const returns an Opt that always resolves to v.
func Const[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// Computed returns an Opt resolved by calling fn with the file at hand.
func Computed[T any](fn func(*File) T) Opt[T] {
	return Opt[T]{fn: fn, set: true}
}

// Resolve produces the option's value for f.
func (o Opt[T]) Resolve(f *File) T {
	if o.fn != nil {
		return o.fn(f)
	}
	return o.value
}

// IsSet reports whether the option was explicitly given (Const or Computed),
// distinguishing "configured to the zero value" from "left unset".
func (o Opt[T]) IsSet() bool {
	return o.set
}
