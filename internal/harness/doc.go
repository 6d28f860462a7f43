// Package harness runs YAML scenarios against an in-process conductor.
//
// # Scenario Format
//
//	name: pos_basket
//	description: "products, baskets and positions"
//	bundle: ../../dist/bundle.json
//	agent: alice
//	fixtures:
//	  basket:
//	    name: Test
//	    sum: 0
//	  position:
//	    amount: 5
//	    timestamp: ${now}
//	tests:
//	  - name: can add products to a basket
//	    steps:
//	      - call: pos/main/create_basket
//	        args:
//	          basket: ${basket}
//	        save: basket_addr
//	      - call: pos/main/get_basket
//	        args:
//	          basket_addr: ${basket_addr}
//	        expect:
//	          ok: true
//	          len: {path: positions, count: 0}
//	          equals: {name: Test}
//	    assertions:
//	      - type: all_ok
//
// A string that is exactly ${name} is replaced by the fixture or saved
// value; ${name} inside a longer string is interpolated as text. ${now}
// yields "1", "2", ... from a per-test deterministic clock.
//
// # Assertion Types
//
//   - call_count: a function was called exactly N times
//   - call_order: functions were first called in the given order
//   - all_ok: no call returned Err
//
// # Determinism
//
// Every test gets a fresh conductor with an in-memory store, sequential
// call ids and its own clock. Content addresses are redacted to <addr:N> in
// golden snapshots.
package harness
