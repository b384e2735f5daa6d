package modules

// Builtins returns fresh instances of every builtin module, in the order
// they are registered. That order is also the CSS emission order.
func Builtins() []*Module {
	return []*Module{
		Canvas(),
		BackgroundImage(),
		GradientOverlay(),
		Text(),
		SplitImage(),
		Image(),
		CornerBadge(),
		OverlayText(),
		Logo(),
	}
}

// Default returns a registry holding the builtin modules. It panics if the
// builtin table is inconsistent, which is a programming error.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(Builtins()...)
	if err := r.Check(); err != nil {
		panic(err)
	}
	return r
}
