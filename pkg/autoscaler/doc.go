/*
Package autoscaler implements Drover's capacity-based scale controller.

The controller compares the total weight of queued and running jobs
against the weight capacity of active nodes and drives the cloud
manager when utilisation breaches a threshold. Three mechanisms keep
it from oscillating:

  - a dead band between ScaleDownThreshold and ScaleUpThreshold where
    nothing happens and pending decisions are cancelled
  - an evaluation period a breach must persist through before any
    action is taken
  - a cool-down period after every scale event during which all
    signals are ignored

# Two-Phase Scale-Down

Removing a node never interrupts running work. Scale-down first marks
the youngest active nodes inactive, which stops the assigner from
placing new jobs on them. CleanInactiveNodes later removes the nodes
that hold no running jobs anymore. Youngest-first selection minimises
work loss and never touches the group leader, which is the oldest node.

# Failure Handling

A failed cloud call leaves the pending decision window open, so the
request re-fires once the provider recovers. Registry errors propagate
to the duty runner and are retried on the next tick.
*/
package autoscaler
