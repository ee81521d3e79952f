package mutation

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/spaolacci/murmur3"

	"mutcompact/pkg/types"
)

// DecoratedKey is a partition key together with its token. Partitions are
// ordered by token first.
type DecoratedKey struct {
	Token int64
	Key   types.Key
}

func NewDecoratedKey(key types.Key) DecoratedKey {
	return DecoratedKey{
		Token: int64(murmur3.Sum64(key)),
		Key:   key,
	}
}

func (k DecoratedKey) Compare(o DecoratedKey) int {
	if c := cmp.Compare(k.Token, o.Token); c != 0 {
		return c
	}
	return bytes.Compare(k.Key, o.Key)
}

func (k DecoratedKey) Equal(o DecoratedKey) bool {
	return k.Compare(o) == 0
}

// Clone detaches the key from the buffer it was decoded from.
func (k DecoratedKey) Clone() DecoratedKey {
	return DecoratedKey{Token: k.Token, Key: bytes.Clone(k.Key)}
}

func (k DecoratedKey) String() string {
	return fmt.Sprintf("{%d, %s}", k.Token, k.Key)
}

// ClusteringKey orders rows within a partition.
type ClusteringKey []byte

func (k ClusteringKey) Compare(o ClusteringKey) int {
	return bytes.Compare(k, o)
}

func (k ClusteringKey) String() string {
	return string(k)
}
