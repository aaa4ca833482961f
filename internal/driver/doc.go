/*
Package driver implements the RuleSet, Processor, and Driver loop of
spec.md §4.5–§4.9: the top-level orchestration that ties the
Classifier, CorrelationKeyer, EventStore, PredicateEngine, and
PayloadTemplate into one pipeline, and drains transports into it.

# Overview

A Rule is requirement + optional timing + optional predicate + an
action template. RuleSet.Evaluate runs one rule against a (trigger,
context) pair and yields one of three outcomes: the condition is
satisfied (emit an action), not yet satisfied but worth rechecking
later (schedule a wake-up), or the requirement itself was never met
(do nothing).

Processor.OnRaw and Processor.OnExpiry are the two entry points: one
per inbound message, one per due expiry. Driver.Run is the
single-threaded loop that drains a transport.Merger, dispatches every
message and due expiry to the Processor, and carries out the actions
it returns (submit, schedule, ack).
*/
package driver
