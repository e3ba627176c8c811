// Package topology records the contact graph a node observes: an undirected
// graph whose vertices are peer ids and whose edges mark pairs that have
// exchanged at least one message. Multiplicity is not tracked.
package topology
