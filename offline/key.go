package offline

import (
	"net/url"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator sits between the method and URL of a request identity before hashing.
const KeySeparator = " "

// IdentityURL returns the URL used for request identity: the full URL without
// its fragment.
func IdentityURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// RequestKey hashes a request identity into the fixed-width key partitions
// are indexed by.
func RequestKey(method string, u *url.URL) string {
	if method == "" {
		method = "GET"
	}
	sum := xxhash.Sum64String(method + KeySeparator + IdentityURL(u))
	return strconv.FormatUint(sum, 16)
}
