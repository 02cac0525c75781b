package ids

import (
	"errors"
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Each instance gets a machine ID from the environment so build IDs stay
// unique when several repo processes share the object store.
func machineId() int64 {
	if val, ok := os.LookupEnv("MACHINE_ID"); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

var sfnode *snowflake.Node
var sfonce sync.Once

// NewUniqueId returns a cluster-safe identifier, used to correlate build jobs
// in logs across workers.
func NewUniqueId() (string, error) {
	sfonce.Do(func() {
		node, err := snowflake.NewNode(machineId())
		if err == nil {
			sfnode = node
		}
	})
	if sfnode == nil {
		return "", errors.New("snowflake node unavailable - check MACHINE_ID")
	}
	return sfnode.Generate().String(), nil
}
