package models

import "sort"

type QuoteType string

const (
	QuoteEquity     QuoteType = "EQUITY"
	QuoteCrypto     QuoteType = "CRYPTOCURRENCY"
	QuoteETF        QuoteType = "ETF"
	QuoteMutualFund QuoteType = "MUTUALFUND"
	QuoteOther      QuoteType = "OTHER"
)

type SearchResult struct {
	Symbol string    `json:"symbol"`
	Name   string    `json:"name"`
	Type   QuoteType `json:"type"`
}

type Bucket string

const (
	BucketIndia    Bucket = "INDIA"
	BucketUSGlobal Bucket = "US_GLOBAL"
	BucketCrypto   Bucket = "CRYPTO"
	BucketFunds    Bucket = "FUNDS"
	BucketOther    Bucket = "OTHER"
)

// BucketOrder is the order category menus are rendered in.
var BucketOrder = []Bucket{BucketIndia, BucketUSGlobal, BucketCrypto, BucketFunds, BucketOther}

var bucketLabels = map[Bucket]string{
	BucketIndia:    "🇮🇳 India",
	BucketUSGlobal: "🌎 Global",
	BucketCrypto:   "₿ Crypto",
	BucketFunds:    "📉 Funds",
	BucketOther:    "📊 Other",
}

// Label is the human name of the bucket; unknown values get the generic label.
func (b Bucket) Label() string {
	if l, ok := bucketLabels[b]; ok {
		return l
	}
	return bucketLabels[BucketOther]
}

// Buckets maps each category to its results, shortest symbol first.
type Buckets map[Bucket][]SearchResult

func (b Buckets) FlatCount() int {
	n := 0
	for _, items := range b {
		n += len(items)
	}
	return n
}

// NonEmpty lists the populated buckets in display order. Buckets outside
// BucketOrder follow, sorted by name.
func (b Buckets) NonEmpty() []Bucket {
	out := make([]Bucket, 0, len(b))
	known := make(map[Bucket]bool, len(BucketOrder))
	for _, k := range BucketOrder {
		known[k] = true
		if len(b[k]) > 0 {
			out = append(out, k)
		}
	}
	var extra []Bucket
	for k, items := range b {
		if !known[k] && len(items) > 0 {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Find returns the result with the given symbol inside bucket cat.
func (b Buckets) Find(cat Bucket, symbol string) (SearchResult, bool) {
	for _, r := range b[cat] {
		if r.Symbol == symbol {
			return r, true
		}
	}
	return SearchResult{}, false
}
