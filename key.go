package quotakit

import (
	"strings"

	"github.com/nhalm/quotakit/identity"
	"github.com/nhalm/quotakit/policy"
)

// Key is the typed composite partition key for one counter. Constructing it
// once and passing it as a value keeps two features from ever colliding on a
// hand-concatenated string.
type Key struct {
	Feature   string
	Class     policy.Class
	Partition string
}

// NewKey builds the counter key for a feature, class, and identity.
func NewKey(feature string, class policy.Class, id identity.Identity) Key {
	return Key{
		Feature:   feature,
		Class:     class,
		Partition: id.Partition,
	}
}

// String renders the key in the store's key format "<feature>:<class>:<partition>".
func (k Key) String() string {
	var b strings.Builder
	b.Grow(len(k.Feature) + 1 + len(k.Class) + 1 + len(k.Partition))
	b.WriteString(k.Feature)
	b.WriteByte(':')
	b.WriteString(string(k.Class))
	b.WriteByte(':')
	b.WriteString(k.Partition)
	return b.String()
}
