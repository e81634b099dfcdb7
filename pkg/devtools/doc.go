// Package devtools streams cell writes to an external inspector and
// applies the states it pushes back.
//
// Attach Middleware to a cell. On the cell's first write the middleware
// registers with a Hub, which connects to the inspector, announces the
// store with an INIT message, and then sends an ACTION message with the
// write label and the committed state after every commit:
//
//	c := cell.New(Cart{}, cell.Named("cart"))
//	c.Use(devtools.Middleware[Cart]("cart"))
//
// The inspector may answer with a DISPATCH message whose payload is
// JUMP_TO_STATE or JUMP_TO_ACTION. The hub decodes the carried state and
// sets it on the cell with the label "time-travel"; that commit is not
// reported back.
//
// Default() is the process-wide hub. It connects to
// $MICROSCOPE_DEVTOOLS_URL and is disabled when the variable is unset, in
// which case the middleware does nothing.
//
// Inspector is the server side: run it with `microscope inspect`.
package devtools
