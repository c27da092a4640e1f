package ddbsdk

import (
	"fmt"
	"strconv"
	"time"

	"github.com/acksell/keyforge/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// WithTTL sets the table's time-to-live attribute on a put or update.
func WithTTL(expiry time.Time) WriteOption {
	return func(o *writeOptions) { o.ttlExpiry = &expiry }
}

// expiry returns the time-to-live attribute of td and the expiry in unix
// seconds. ok is false when the write sets no expiry.
func (o writeOptions) expiry(td table.TableDefinition) (name string, unix int64, ok bool, err error) {
	if o.ttlExpiry == nil {
		return "", 0, false, nil
	}
	if td.TimeToLiveKey == "" {
		return "", 0, false, fmt.Errorf("table %q has no time-to-live attribute", td.Name)
	}
	return td.TimeToLiveKey, o.ttlExpiry.Unix(), true, nil
}

func ttlDDB(unix int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(unix, 10)}
}
