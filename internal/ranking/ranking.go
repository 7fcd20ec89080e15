// Package ranking orders catalog listings by privilege, boost and popularity.
package ranking

import (
	"sort"
	"time"

	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
)

type Bucket int

const (
	BucketPrivileged Bucket = iota
	BucketBoosted
	BucketOrganic
)

func (b Bucket) String() string {
	switch b {
	case BucketPrivileged:
		return "privileged"
	case BucketBoosted:
		return "boosted"
	default:
		return "organic"
	}
}

// IsBoosted re-checks the projected expiry; the is_boosted flag alone may be stale.
func IsBoosted(listing catalogdomain.Listing, now time.Time) bool {
	return listing.IsBoosted && listing.BoostExpiresAt != nil && listing.BoostExpiresAt.After(now)
}

func BucketOf(listing catalogdomain.Listing, now time.Time) Bucket {
	switch {
	case listing.IsPrivileged:
		return BucketPrivileged
	case IsBoosted(listing, now):
		return BucketBoosted
	default:
		return BucketOrganic
	}
}

// Rank returns a new slice ordered privileged first, then live boosts by
// soonest expiry, then by popularity descending. Ties break on listing id.
func Rank(listings []catalogdomain.Listing, now time.Time) []catalogdomain.Listing {
	out := make([]catalogdomain.Listing, len(listings))
	copy(out, listings)

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], now)
	})
	return out
}

func less(a, b catalogdomain.Listing, now time.Time) bool {
	ba, bb := BucketOf(a, now), BucketOf(b, now)
	if ba != bb {
		return ba < bb
	}
	if ba == BucketBoosted {
		if !a.BoostExpiresAt.Equal(*b.BoostExpiresAt) {
			return a.BoostExpiresAt.Before(*b.BoostExpiresAt)
		}
	}
	if a.PopularityScore != b.PopularityScore {
		return a.PopularityScore > b.PopularityScore
	}
	return a.ID < b.ID
}
