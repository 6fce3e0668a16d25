/*
Package fsm implements the guarded state machine that models sales
conversation stage progression.

The machine owns an ordered, prioritized rule table. A transition fires
only when a rule matches the current state and trigger AND its guard
predicate holds against the conversation context. Guard panics are
recovered and treated as a failed guard; rejected transitions never
mutate the context.

Completed and Failed are terminal: the default rule table has no outgoing
rules from either, and HardRejection acts as the highest-priority escape
hatch from every non-terminal state.
*/
package fsm
