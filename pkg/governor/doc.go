/*
Package governor bounds autonomous re-planning.

A Governor records churn events (how much of a schedule a change touched) and
decides when a running kernel must stop and wait for an explicit decision.
Entropy is an exponential moving average of weighted churn and is reported
for observability; the freeze gate compares the churn accumulated since the
last approved baseline against the kernel's entropy cap. Accumulated entropy
never decays by itself: only Decide(Continue) or Decide(Reset) lowers it.

FlowModel ranks candidate block sequences by cognitive-mode switching and
fragmentation cost. It is a ranking signal and never blocks execution.
*/
package governor
