package models

import "github.com/shopspring/decimal"

type ChartRequest struct {
	Symbol        string
	Prices        []decimal.Decimal
	Timestamps    []int64
	Period        Period
	PercentChange decimal.Decimal
}

// ChartArtifact holds either rendered image bytes or a URL that resolves to
// the image. Exactly one of the two is set.
type ChartArtifact struct {
	Image []byte
	URL   string
}

func (a ChartArtifact) IsImage() bool {
	return len(a.Image) > 0
}
