// Package id hands out snowflake ids. Subscriber handles use them so log lines
// from one connection can be followed across the hub and its transport.
package id

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
)

var (
	nodeID atomic.Int64
	node   = sync.OnceValues(func() (*snowflake.Node, error) {
		return snowflake.NewNode(nodeID.Load())
	})
)

// Init picks the node id for this process. It only has an effect before the
// first id is generated; without it the node id is 0.
func Init(id int64) error {
	nodeID.Store(id)
	if _, err := node(); err != nil {
		return fmt.Errorf("snowflake node %d: %w", id, err)
	}
	return nil
}

func New() int64 {
	n, err := node()
	if err != nil {
		panic(fmt.Sprintf("snowflake node not usable: %v", err))
	}
	return n.Generate().Int64()
}
