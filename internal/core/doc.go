// Package core provides the internal implementation of procexpect.
// It contains the Registry (live and pending-exit sets with consume-once exit
// codes), the Multiplexer (one poll(2) wait across every live output pipe,
// round-robin servicing, reap on EOF), and the Session operations built on
// them: Expect, Capture, Run and Finish.
package core
