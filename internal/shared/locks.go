package shared

import "fmt"

// SweepGateKey builds the redis key guarding expiration sweeps of one branch.
// Branch 0 stands for the all-branches backstop run.
func SweepGateKey(branchID int64) string {
	return fmt.Sprintf("rentflow:sweep:branch:%d", branchID)
}

// FeedChannel builds the pub/sub channel carrying change events for a branch.
func FeedChannel(branchID int64) string {
	return fmt.Sprintf("rentflow:feed:branch:%d", branchID)
}
