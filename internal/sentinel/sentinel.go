package sentinel

var _ error = Error("")

// Error is an error backed by a string constant.
type Error string

func (e Error) Error() string {
	return string(e)
}
