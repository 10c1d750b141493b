package vpcc

// ParserOption configures a Parser, following the functional-options
// pattern used throughout this module's sibling packages.
type ParserOption func(*Parser)

// WithPTSFunc overrides the PTS assignment formula applied to every frame,
// per spec.md §9's first open question. The default is DefaultPTSFunc.
func WithPTSFunc(f PTSFunc) ParserOption {
	return func(p *Parser) {
		p.ptsFunc = f
	}
}
