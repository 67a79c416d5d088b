package identifier

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewContentID returns a KSUID string. KSUIDs sort by creation time, which
// keeps content listings index-friendly.
func NewContentID() string {
	return ksuid.New().String()
}

var (
	nodeOnce sync.Once
	node     *snowflake.Node
	nodeErr  error
)

func merchantNode() (*snowflake.Node, error) {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				nodeID = n
			}
		}
		node, nodeErr = snowflake.NewNode(nodeID)
	})
	return node, nodeErr
}

// NewMerchantRef returns a snowflake ID string used as the merchant-side
// reference on outbound payment requests. The node ID comes from
// SNOWFLAKE_NODE; node 1 is used when unset or invalid. If the node cannot
// be initialized it falls back to a KSUID so a unique reference is still
// produced.
func NewMerchantRef() string {
	n, err := merchantNode()
	if err != nil {
		return ksuid.New().String()
	}
	return n.Generate().String()
}

// NewObjectKey returns a random object-store key preserving the uploaded
// file's extension, e.g. "0b8f0a3e-....mp3".
func NewObjectKey(filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i:])
	}
	return uuid.New().String() + ext
}
