package logging

// nop discards everything; used in tests that don't want log noise.
type nop struct{}

// NewNop returns a Logger whose calls are all no-ops.
func NewNop() Logger { return nop{} }

func (nop) Debugf(string, ...interface{}) {}
func (nop) Infof(string, ...interface{})  {}
func (nop) Warnf(string, ...interface{})  {}
func (nop) Errorf(string, ...interface{}) {}
func (n nop) With(Fields) Logger          { return n }
