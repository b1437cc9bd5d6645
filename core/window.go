package core

// WindowController forwards window-chrome commands to the host window.
// Commands are fire-and-forget.
type WindowController interface {
	Minimize()
	MaximizeOrRestore()
	Close()
}
