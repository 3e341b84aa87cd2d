package utils

// TypeNotAcceptedError represents an error indicating that a proposed media
// type was rejected during negotiation. Renegotiation may be retried with a
// different type.
type TypeNotAcceptedError struct {
}

// Error returns the error message for TypeNotAcceptedError.
func (TypeNotAcceptedError) Error() string {
	return "Media type not accepted"
}

// OutOfRangeError represents an error indicating that an enumeration
// position lies outside the candidate list.
type OutOfRangeError struct {
}

// Error returns the error message for OutOfRangeError.
func (OutOfRangeError) Error() string {
	return "Position out of range"
}

// NotConnectedError represents an error indicating that an operation
// requires a completed connection.
type NotConnectedError struct {
}

// Error returns the error message for NotConnectedError.
func (NotConnectedError) Error() string {
	return "Not connected"
}

// UnimplementedError represents an error indicating that the operation is not implemented.
type UnimplementedError struct {
}

// Error returns the error message for UnimplementedError.
func (UnimplementedError) Error() string {
	return "Not implemented"
}

// NoCodecDataError represents an error indicating that no codec data was provided.
type NoCodecDataError struct {
}

// Error returns the error message for NoCodecDataError.
func (NoCodecDataError) Error() string {
	return "No codec data"
}
