// Package gossip implements the clock-gossip side of a lamportnet node: the
// wire message, the Transport contract a node is wired to, the known-peer
// view, and the self-disarming Scheduler that broadcasts the clock until the
// node takes part in its first exchange.
//
// Typical usage:
//
//	b := gossip.NewBroadcaster(tr.Peers, send, &clk, logger)
//	s := gossip.NewScheduler("gossip_start", gossip.DefaultSchedulerConfig(), b.Fire, logger)
//	s.Start(ctx)
//	defer s.Stop()
//
// Once the node's clock leaves zero, gossip becomes purely reactive: every
// inbound clock is answered with exactly one reply and the scheduler never
// re-arms.
package gossip
