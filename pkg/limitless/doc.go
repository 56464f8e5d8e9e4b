// Package limitless implements the Limitless tournament API on top of the
// caching HTTP client.
//
// # Overview
//
// A [Service] lists tournaments for a format, then fetches the standings of
// every tournament in parallel through a [fanout.Aggregator]:
//
//	svc := limitless.NewService(apiClient, fanout.New(cfg))
//	report, err := svc.Tours(ctx, "STANDARD")
//	fmt.Println(len(report.Tournaments), len(report.Standings.Records))
//
// A failed list request fails the whole operation. A failed standings request
// only produces a [fanout.Failure] for that tournament. Cancelling ctx during
// the fan-out returns the partial report along with the context error.
//
// Every request of the tours path is sent with Content-Type: application/json.
//
// # Decoding
//
// The tournament list is decoded strictly by default: every entry must carry
// a string id and the first offending entry is reported by index.
// [DecodeLoose] skips such entries with a warning instead. Both modes reject
// a body that is not a JSON array with [ErrNotArray].
//
// The games catalog is filtered client side, since the endpoint has no
// filter parameter.
//
// [fanout.Aggregator]: github.com/Sternrassler/limitless-client/pkg/fanout.Aggregator
// [fanout.Failure]: github.com/Sternrassler/limitless-client/pkg/fanout.Failure
package limitless
