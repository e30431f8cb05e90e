// services/market_service.go
package services

import (
	"errors"

	"monster-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketFeePercent is withheld from the seller's proceeds on every sale.
const MarketFeePercent = 5

var (
	ErrNotAvatarOwner     = errors.New("avatar does not belong to the seller")
	ErrAvatarDead         = errors.New("a defeated avatar cannot be listed")
	ErrAvatarDeathMarked  = errors.New("a death-marked avatar cannot be listed")
	ErrAvatarEquipped     = errors.New("the equipped avatar cannot be listed")
	ErrAlreadyListed      = errors.New("avatar already has an active listing")
	ErrListingUnavailable = errors.New("listing is no longer available")
	ErrPriceChanged       = errors.New("listing price has changed, refresh and try again")
	ErrSelfPurchase       = errors.New("cannot purchase your own listing")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInventoryFull      = errors.New("avatar inventory limit reached")
)

type MarketService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewMarketService(db *gorm.DB, logger *zap.Logger) *MarketService {
	return &MarketService{DB: db, Logger: logger}
}

// checkListingEligibility verifies the avatar may be put on the market. Must
// run with the avatar row locked so two concurrent listing creations cannot
// both pass.
func checkListingEligibility(tx *gorm.DB, sellerID string, avatar *models.Avatar) error {
	if avatar.OwnerID != sellerID {
		return ErrNotAvatarOwner
	}
	if !avatar.Alive() {
		return ErrAvatarDead
	}
	if avatar.DeathMarked {
		return ErrAvatarDeathMarked
	}

	var profile models.PlayerProfile
	err := tx.First(&profile, "user_id = ?", sellerID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if profile.EquippedAvatarID != nil && *profile.EquippedAvatarID == avatar.ID {
		return ErrAvatarEquipped
	}

	var active int64
	if err := tx.Model(&models.TradeListing{}).
		Where("avatar_id = ? AND status = ?", avatar.ID, models.ListingStatusActive).
		Count(&active).Error; err != nil {
		return err
	}
	if active > 0 {
		return ErrAlreadyListed
	}
	return nil
}

// CreateListing puts an avatar up for sale after the eligibility predicate
// passes inside the same transaction as the insert.
func (s *MarketService) CreateListing(c *fiber.Ctx) error {
	sellerID, _ := c.Locals("user_id").(string)

	var req struct {
		AvatarID       string `json:"avatar_id"`
		PriceCoins     int64  `json:"price_coins"`
		PriceFragments int64  `json:"price_fragments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if sellerID == "" || req.AvatarID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "seller and avatar_id are required"})
	}
	if req.PriceCoins < 0 || req.PriceFragments < 0 || (req.PriceCoins == 0 && req.PriceFragments == 0) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "a positive price is required"})
	}

	var listing models.TradeListing
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var avatar models.Avatar
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&avatar, "id = ?", req.AvatarID).Error; err != nil {
			return err
		}
		if err := checkListingEligibility(tx, sellerID, &avatar); err != nil {
			return err
		}

		listing = models.TradeListing{
			SellerID:       sellerID,
			AvatarID:       req.AvatarID,
			PriceCoins:     req.PriceCoins,
			PriceFragments: req.PriceFragments,
			Status:         models.ListingStatusActive,
		}
		return tx.Create(&listing).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "avatar not found"})
		case errors.Is(err, ErrNotAvatarOwner):
			return c.Status(fiber.StatusForbidden).JSON(ProcResult{Success: false, Message: err.Error()})
		case errors.Is(err, ErrAvatarDead), errors.Is(err, ErrAvatarDeathMarked),
			errors.Is(err, ErrAvatarEquipped), errors.Is(err, ErrAlreadyListed):
			return c.Status(fiber.StatusBadRequest).JSON(ProcResult{Success: false, Message: err.Error()})
		}
		s.Logger.Error("failed to create listing", zap.String("seller", sellerID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create listing", "details": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(listing)
}

// CancelListing is a single conditional update keyed by listing id and
// ownership.
func (s *MarketService) CancelListing(c *fiber.Ctx) error {
	sellerID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	result := s.DB.Model(&models.TradeListing{}).
		Where("id = ? AND seller_id = ? AND status = ?", id, sellerID, models.ListingStatusActive).
		Update("status", models.ListingStatusCancelled)
	if result.Error != nil {
		s.Logger.Error("failed to cancel listing", zap.String("listing_id", id), zap.Error(result.Error))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to cancel listing", "details": result.Error.Error()})
	}
	if result.RowsAffected == 0 {
		var listing models.TradeListing
		if err := s.DB.First(&listing, "id = ?", id).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "listing not found"})
		}
		if listing.SellerID != sellerID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "listing does not belong to you"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "listing is not active"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "listing cancelled"})
}

// ListListings returns active listings, optionally filtered by seller.
func (s *MarketService) ListListings(c *fiber.Ctx) error {
	query := s.DB.Where("status = ?", models.ListingStatusActive).Order("created_at DESC")
	if seller := c.Query("seller_id"); seller != "" {
		query = query.Where("seller_id = ?", seller)
	}

	var listings []models.TradeListing
	if err := query.Find(&listings).Error; err != nil {
		s.Logger.Error("failed to list market listings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list market listings", "details": err.Error()})
	}
	return c.JSON(fiber.Map{"listings": listings, "count": len(listings)})
}

// sellerProceeds withholds the market fee from the sale price.
func sellerProceeds(price int64) int64 {
	return price - price*MarketFeePercent/100
}

// Purchase settles a sale as one unit: debit the buyer the full price, credit
// the seller minus the fee, transfer the avatar and close the listing. The
// caller passes the price it saw; if the listing changed in between, the whole
// operation fails and nothing is applied.
func (s *MarketService) Purchase(c *fiber.Ctx) error {
	buyerID, _ := c.Locals("user_id").(string)

	var req struct {
		AvatarID       string `json:"avatar_id"`
		PriceCoins     int64  `json:"price_coins"`
		PriceFragments int64  `json:"price_fragments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if buyerID == "" || req.AvatarID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "buyer and avatar_id are required"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var listing models.TradeListing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("avatar_id = ? AND status = ?", req.AvatarID, models.ListingStatusActive).
			First(&listing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingUnavailable
		}
		if err != nil {
			return err
		}

		if listing.SellerID == buyerID {
			return ErrSelfPurchase
		}
		// Re-validate the caller-supplied price against the locked row.
		if listing.PriceCoins != req.PriceCoins || listing.PriceFragments != req.PriceFragments {
			return ErrPriceChanged
		}

		var buyer models.PlayerProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&buyer, "user_id = ?", buyerID).Error; err != nil {
			return err
		}
		if buyer.Coins < listing.PriceCoins || buyer.Fragments < listing.PriceFragments {
			return ErrInsufficientFunds
		}

		var owned int64
		if err := tx.Model(&models.Avatar{}).
			Where("owner_id = ?", buyerID).
			Count(&owned).Error; err != nil {
			return err
		}
		if owned >= int64(buyer.AvatarSlots) {
			return ErrInventoryFull
		}

		var seller models.PlayerProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&seller, "user_id = ?", listing.SellerID).Error; err != nil {
			return err
		}

		buyer.Coins -= listing.PriceCoins
		buyer.Fragments -= listing.PriceFragments
		seller.Coins += sellerProceeds(listing.PriceCoins)
		seller.Fragments += sellerProceeds(listing.PriceFragments)

		if err := tx.Save(&buyer).Error; err != nil {
			return err
		}
		if err := tx.Save(&seller).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Avatar{}).
			Where("id = ?", listing.AvatarID).
			Update("owner_id", buyerID).Error; err != nil {
			return err
		}
		listing.Status = models.ListingStatusSold
		return tx.Save(&listing).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrListingUnavailable):
			return c.Status(fiber.StatusNotFound).JSON(ProcResult{Success: false, Message: err.Error()})
		case errors.Is(err, ErrSelfPurchase), errors.Is(err, ErrPriceChanged),
			errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInventoryFull):
			return c.Status(fiber.StatusBadRequest).JSON(ProcResult{Success: false, Message: err.Error()})
		}
		s.Logger.Error("purchase failed", zap.String("buyer", buyerID), zap.String("avatar_id", req.AvatarID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "purchase failed", "details": err.Error()})
	}

	return c.JSON(ProcResult{Success: true, Message: "purchase complete"})
}
