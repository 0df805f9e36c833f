// Package harness runs the MS-05 device model checks against a device
// reachable over an IS-12 control channel.
//
// A Suite runs its checks in a fixed order and returns one Result per
// check, or per reference key for the definition checks:
//
//	auto_device_model      build the object graph from the root block
//	auto_class_manager     singleton class manager under the root block
//	auto_device_manager    singleton device manager under the root block
//	auto_<classId>         one per reference control class
//	auto_<datatype>        one per reference datatype
//	auto_constraints       write probe of every constrained property
//
// Every Result is PASS, FAIL or UNCLEAR. A FAIL may carry a link to the
// MS-05-02 page that states the violated requirement. When the device
// model cannot be queried every dependent check fails with the same
// query error trail.
//
// The control channel is opened lazily by the first check and closed once
// when Run returns.
//
// # Interactive mode
//
// With Config.Interactive and a Question, the suite shows a message before
// and after the run, and asks the operator which constrained properties
// the probe may write. An empty or unanswered selection makes
// auto_constraints UNCLEAR.
//
// # Scenarios
//
// Scenario files describe faults to inject into a simulated device and
// the results the suite must then report:
//
//	name: lax_gain
//	description: "Device accepts out of range gain values"
//	faults:
//	  - type: lax
//	    oid: 11
//	    property: {level: 3, index: 1}
//	expect:
//	  - name: auto_constraints
//	    state: FAIL
//	    message_contains: "Minimum"
//
// Fault types are lax, fail_get and duplicate_manager. Results are
// compared with CheckExpectations and, for whole runs, against golden
// snapshots written by Snapshot.
package harness
