// Package fanout runs one dependent fetch per reference in parallel and
// joins the outcomes.
//
// A list endpoint yields identifiers, and every identifier needs its own
// detail request. The Aggregator dispatches those requests on a bounded
// errgroup, gives each task its own timeout, and never lets one failed task
// affect its siblings.
//
// Example usage:
//
//	agg := fanout.New(fanout.DefaultConfig())
//	result := fanout.Collect(ctx, agg, ids, func(ctx context.Context, id string) (Standings, error) {
//		var s Standings
//		err := client.GetJSON(ctx, "/tournaments/"+id+"/standings", &s)
//		return s, err
//	})
//	fmt.Println(len(result.Records), len(result.Failures))
//
// The aggregator:
//   - Dispatches at most MaxConcurrency tasks at once (-1 removes the bound)
//   - Applies a per-task timeout derived from the caller's context
//   - Recovers panics inside a task and records them as failures
//   - Records refs left undispatched after cancellation as cancelled
//   - Returns records sorted by their position in the input
//
// Every ref ends up in exactly one of Result.Records or Result.Failures.
package fanout
