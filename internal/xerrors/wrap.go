package xerrors

// Unwrap flattens one level of a joined error. A nil error yields nil and a
// plain error a single element slice.
func Unwrap(err error) []error {
	if err == nil {
		return nil
	}
	u, ok := err.(interface {
		Unwrap() []error
	})
	if !ok {
		return []error{err}
	}
	return u.Unwrap()
}
