package nic

import (
	"errors"
	"fmt"
	"net"
)

// ErrLinkDown is returned by Register when the bound interface is not
// administratively and operationally up (spec §4.7's LINK_DOWN).
var ErrLinkDown = errors.New("nic: link down")

// Group is the fanout group a set of per-worker Queues joins (spec §4.7's
// group_configure): a PACKET_FANOUT group hashing on L3+L4 so that
// identical 4-tuples always land on the same member socket, which is the
// flow-affine guarantee §4.7 and invariant 6 require.
type Group struct {
	ifName    string
	ifIndex   int
	groupID   int
	frameSize int
	bucket    BucketMap
}

// GroupConfig mirrors spec §4.7's group_configure parameters.
type GroupConfig struct {
	Interface     string
	GroupID       int
	BucketCount   int
	RingFrameSize int
}

// NewGroup resolves the interface and records the fanout group identity.
// The kernel's own PACKET_FANOUT_HASH bucketing (joined per-Queue in
// Register) supplies the actual classifier; BucketMap is retained for
// introspection and the §4.7 "buckets are striped round-robin" contract
// that spec.md's metrics/diagnostics expect to be able to describe.
func NewGroup(cfg GroupConfig) (*Group, error) {
	if cfg.BucketCount < 512 {
		return nil, fmt.Errorf("nic: bucket count %d below minimum 512", cfg.BucketCount)
	}

	ifi, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("nic: resolve interface %q: %w", cfg.Interface, err)
	}

	return &Group{
		ifName:    cfg.Interface,
		ifIndex:   ifi.Index,
		groupID:   cfg.GroupID,
		frameSize: cfg.RingFrameSize,
	}, nil
}

// BucketMap records which worker index each of BucketCount classifier
// buckets resolves to (spec §4.7: "bucket[b] = first_worker_index + b mod
// worker_count").
type BucketMap struct {
	Buckets []int
}

// ConfigureBuckets computes and installs the bucket-to-worker striping for
// diagnostics (spec §4.7's bucket_configure). firstWorker is the index of
// the first forward worker in the cohort (the TAP worker and control thread
// are not bucket targets).
func (g *Group) ConfigureBuckets(bucketCount, firstWorker, workerCount int) {
	buckets := make([]int, bucketCount)
	for b := range buckets {
		buckets[b] = firstWorker + b%workerCount
	}
	g.bucket = BucketMap{Buckets: buckets}
}

// Buckets returns the last configured bucket map.
func (g *Group) Buckets() BucketMap {
	return g.bucket
}

// linkUp reports whether the bound interface is administratively and
// operationally up.
func (g *Group) linkUp() (bool, error) {
	ifi, err := net.InterfaceByName(g.ifName)
	if err != nil {
		return false, fmt.Errorf("nic: query interface %q: %w", g.ifName, err)
	}
	return ifi.Flags&net.FlagUp != 0, nil
}

// htons converts a uint16 to network byte order for wire-level values
// passed to raw-socket syscalls.
func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
