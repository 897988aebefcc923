package di

var (
	// defaultContainer holds the default Container.
	defaultContainer *Container
)

// SetDefaultContainer sets the default Container used by package-level
// convenience code. This is similar to slog.SetDefault.
//
// Pass nil to remove the default container.
func SetDefaultContainer(c *Container) {
	defaultContainer = c
}

// DefaultContainer returns the current default Container, or nil if none
// has been set.
func DefaultContainer() *Container {
	return defaultContainer
}
