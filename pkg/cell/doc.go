// Package cell provides the reactive state container at the heart of
// microscope.
//
// # Core Types
//
// Cell[T] holds one value, runs writes through a middleware pipeline and
// notifies subscribers when the committed value changes:
//
//	count := cell.New(0, cell.Named("count"))
//	count.Set(cell.Transform(func(n int) int { return n + 1 }))
//	count.SetValue(5)
//	stop := count.Subscribe(func(n int) { fmt.Println("count is", n) })
//	defer stop()
//
// Updaters are a tagged variant: Replace(v) swaps the value, Transform(fn)
// computes it from the previous one, and Draft(fn) lets fn mutate a deep
// copy of the previous value.
//
// Derive projects one source into a new cell; Combine2, Combine3 and
// CombineN project several:
//
//	doubled := cell.Derive(count, func(n int) int { return n * 2 })
//	total := cell.Combine2(a, b, func(x, y int) int { return x + y })
//
// # Write Semantics
//
// A Set whose next value is identical to the current one does nothing: no
// middleware runs and no listener fires. Identity follows Identical (value
// equality for scalars, reference equality for maps, slices, pointers and
// channels). A middleware may veto a write by returning prev.
//
// Listeners run synchronously after the commit, in subscription order. A
// panicking listener is recovered and logged; its siblings still run.
//
// # Reentrancy
//
// A listener may call Set on the cell that notified it. The nested write
// runs to completion (fold, commit, notify) before the outer notification
// loop resumes; every listener receives the latest committed value at the
// moment it is called. Middlewares and Transform functions run while the
// cell's write lock is held: they may call Get (which returns the value
// before the write) but must not call Set on the same cell.
//
// # Thread Safety
//
// Cells are safe for concurrent use. Writers are serialized per cell, so a
// Transform always sees the value committed by the previous writer.
// Notification happens outside the lock; listeners of concurrent writers
// may interleave.
package cell
