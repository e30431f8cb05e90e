package models

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusCancelled ListingStatus = "cancelled"
	ListingStatusSold      ListingStatus = "sold"
)

// TradeListing offers one avatar for sale. An avatar can have at most one
// active listing; all state changes are conditional updates keyed by id and
// ownership, and settlement happens only inside the purchase transaction.
type TradeListing struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SellerID string `gorm:"index;not null" json:"seller_id"`
	AvatarID string `gorm:"type:uuid;not null;index" json:"avatar_id"`

	PriceCoins     int64 `json:"price_coins" gorm:"default:0"`
	PriceFragments int64 `json:"price_fragments" gorm:"default:0"`

	Status ListingStatus `json:"status" gorm:"type:varchar(16);default:'active';index"`

	Timestamps
}
