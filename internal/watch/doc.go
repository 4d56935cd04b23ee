// Package watch polls for device reachability and triggers a full sync when
// the device comes on the network and the minimum inter-sync delay has
// elapsed. The loop has no terminal state; it runs until stopped.
package watch
