// Package action binds named updater-producing functions to a cell.
//
// Calling a bound action runs its body, then feeds the resulting updater
// into the cell's Set with the action name as the write label, so
// middlewares can tell writes apart:
//
//	todos := action.Bind(c, action.Map[[]Todo]{
//	    "add": action.Sync1(func(text string) (cell.Updater[[]Todo], error) {
//	        return cell.Transform(func(prev []Todo) []Todo {
//	            return append(prev, Todo{Text: text})
//	        }), nil
//	    }),
//	    "load": action.Async(func(ctx context.Context, _ ...any) (cell.Updater[[]Todo], error) {
//	        items, err := api.List(ctx)
//	        return cell.Replace(items), err
//	    }),
//	})
//
//	err := todos.Call("add", "milk")
//	<-todos.Go(ctx, "load").Done()
//
// A body that returns an error leaves the cell unchanged, and the error is
// returned as is. Asynchronous bodies are not cancelled by later calls:
// overlapping invocations commit independently, last to finish wins.
package action
