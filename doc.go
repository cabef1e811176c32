// Package rampselect implements a weight ramping-up endpoint selector, the
// piece of a client-side load balancer that gradually increases the traffic
// share of newly observed backends rather than admitting them at full weight
// immediately.
//
// # Architecture
//
// A [Selector] subscribes to an [EndpointGroup] and maintains a live view of
// (endpoint, effective weight) pairs backed by a [distribution]. Newly
// observed or upgraded endpoints are placed into a time-bucketed
// [windowScheduler], which advances their weight one step per tick using a
// [Transition] function, until they graduate to their target weight.
//
// All mutation - reacting to endpoint-set changes, inserting into windows,
// advancing steps on tick, rebuilding the live view - runs serially on a
// single [Executor], matching the single-threaded cooperative scheduling
// model described by the specification this package implements. Selection,
// via [Selector.SelectNow], never touches the executor and never blocks.
//
// # Usage
//
//	group := rampselect.NewStaticGroup(rampselect.Endpoint{
//		Authority:    "foo.example.com:8080",
//		TargetWeight: 1000,
//	})
//
//	sel, err := rampselect.New(group, rampselect.Config{
//		RampingUpInterval:     20 * time.Second,
//		TotalSteps:            10,
//		RampingUpTaskWindow:   time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sel.Close()
//
//	endpoint, ok := sel.SelectNow(context.Background())
package rampselect
