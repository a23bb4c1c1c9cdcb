package service

// SetPreSubmit installs fn to run at the start of every submit
// goroutine, before the mutation passes its point of no return.
func (e *Engine) SetPreSubmit(fn func()) { e.preSubmit = fn }
