package reservation

// Available reports whether the requested number of units can be served
// from the given available quantity. It is a point-in-time check only;
// the authoritative admission decision is the conditional update run at
// reservation time, which re-checks under the same statement that
// decrements.
func Available(available, requested int32) bool {
	return available >= requested
}

func validateQuantity(quantity int32) error {
	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	return nil
}
