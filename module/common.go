package module

// ReadyDoneAware is implemented by all components with a startup/shutdown
// lifecycle. Components support a single start-stop cycle.
type ReadyDoneAware interface {
	// Ready commences startup and returns a channel that is closed once
	// the component is fully operational.
	Ready() <-chan struct{}

	// Done commences shutdown and returns a channel that is closed once
	// the component has fully stopped.
	Done() <-chan struct{}
}
