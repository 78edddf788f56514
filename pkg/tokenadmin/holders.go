package tokenadmin

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math"

	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/metrics"
)

// HolderBucket counts holders whose whole-token balance is in [Min, Max). A
// nil Max is unbounded.
type HolderBucket struct {
	Range string
	Min   uint64
	Max   *uint64
	Count uint64
}

type HolderDistribution struct {
	Total   uint64
	Buckets []*HolderBucket
}

var holderBucketBounds = []uint64{0, 1_000, 10_000, 100_000, 1_000_000}

// GetHolderDistribution counts the token accounts of a mint with a non-zero
// balance, bucketed by whole-token balance using the record's decimals.
func (a *Admin) GetHolderDistribution(ctx context.Context, token, mint ed25519.PublicKey) (_ *HolderDistribution, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetHolderDistribution", expectedErrors...)
	defer tracer.Finish(&err)

	index, ok := a.ledger.(ledger.HolderIndex)
	if !ok {
		return nil, ErrHolderIndexUnsupported
	}

	record, err := a.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	holders, err := index.GetHolders(ctx, mint)
	if err != nil {
		return nil, err
	}

	return newHolderDistribution(holders, record.Decimals), nil
}

func newHolderDistribution(holders []*ledger.Holder, decimals uint8) *HolderDistribution {
	res := &HolderDistribution{}
	for i, min := range holderBucketBounds {
		bucket := &HolderBucket{Min: min}
		if i+1 < len(holderBucketBounds) {
			max := holderBucketBounds[i+1]
			bucket.Max = &max
		}
		bucket.Range = bucketRange(bucket)
		res.Buckets = append(res.Buckets, bucket)
	}

	unit := wholeTokenUnit(decimals)
	for _, holder := range holders {
		if holder.Amount == 0 {
			continue
		}

		res.Total++

		whole := holder.Amount / unit
		for i := len(res.Buckets) - 1; i >= 0; i-- {
			if whole >= res.Buckets[i].Min {
				res.Buckets[i].Count++
				break
			}
		}
	}
	return res
}

// wholeTokenUnit returns 10^decimals, saturating at the largest power of ten
// representable in a uint64.
func wholeTokenUnit(decimals uint8) uint64 {
	unit := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		if unit > math.MaxUint64/10 {
			break
		}
		unit *= 10
	}
	return unit
}

func bucketRange(bucket *HolderBucket) string {
	if bucket.Max == nil {
		return fmt.Sprintf("%d+", bucket.Min)
	}
	return fmt.Sprintf("%d-%d", bucket.Min, *bucket.Max)
}
