// Package board holds what the agent currently displays: the most recent card
// for each configured source and a rolling availability percentage computed
// from that source's last 20 poll outcomes.
//
// Board is written by every poll loop and read by the render loop; all
// access goes through its mutex.
package board
