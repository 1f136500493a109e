package observability

// NoOpObserver discards every operation. Useful as a default in tests.
type NoOpObserver struct{}

// ObserveOperation does nothing.
func (n *NoOpObserver) ObserveOperation(OperationContext) {}

// NewNoOpObserver returns an Observer that discards everything.
func NewNoOpObserver() Observer {
	return &NoOpObserver{}
}

// Multi fans a single operation out to several observers. Nil entries are skipped.
type Multi []Observer

// ObserveOperation forwards ctx to every non-nil observer in order.
func (m Multi) ObserveOperation(ctx OperationContext) {
	for _, o := range m {
		if o != nil {
			o.ObserveOperation(ctx)
		}
	}
}
