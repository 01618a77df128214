package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
)

type Instrument struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Symbol      string          `gorm:"size:40;not null;uniqueIndex" json:"symbol"`
	BaseCoin    string          `gorm:"size:20;not null" json:"base_coin"`
	QuoteCoin   string          `gorm:"size:20;not null" json:"quote_coin"`
	TickSize    decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"tick_size"`
	MinQuantity decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"min_quantity"`
	MakerFee    decimal.Decimal `gorm:"type:decimal(10,8);not null;default:0" json:"maker_fee"`
	TakerFee    decimal.Decimal `gorm:"type:decimal(10,8);not null;default:0" json:"taker_fee"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInstrument struct {
	Symbol      string          `json:"symbol" binding:"required,max=40"`
	BaseCoin    string          `json:"base_coin" binding:"required,max=20"`
	QuoteCoin   string          `json:"quote_coin" binding:"required,max=20"`
	TickSize    decimal.Decimal `json:"tick_size"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	MakerFee    decimal.Decimal `json:"maker_fee"`
	TakerFee    decimal.Decimal `json:"taker_fee"`
	IsActive    *bool           `json:"is_active"`
}

type InstrumentFilter struct {
	Symbol   string
	IsActive *bool
	SortKey  string
	SortType SortType
	Page     PageRequest
}

var instrumentSorts = map[string]string{
	"id":         "id",
	"symbol":     "symbol",
	"created_at": "created_at",
}

var feeCeiling = decimal.NewFromInt(1)

func (input *NewInstrument) validate(ctx context.Context, db *gorm.DB, id int) error {
	input.Symbol = strings.ToUpper(strings.TrimSpace(input.Symbol))
	input.BaseCoin = strings.ToUpper(strings.TrimSpace(input.BaseCoin))
	input.QuoteCoin = strings.ToUpper(strings.TrimSpace(input.QuoteCoin))

	if input.Symbol == "" {
		return utils.NewValidationError("symbol", "is required")
	}
	if input.BaseCoin == input.QuoteCoin {
		return utils.NewValidationError("quote_coin", "must differ from base_coin")
	}
	if !input.TickSize.IsPositive() {
		return utils.NewValidationError("tick_size", "must be greater than 0")
	}
	if !input.MinQuantity.IsPositive() {
		return utils.NewValidationError("min_quantity", "must be greater than 0")
	}
	if input.MakerFee.IsNegative() || input.MakerFee.GreaterThanOrEqual(feeCeiling) {
		return utils.NewValidationError("maker_fee", "must be within [0, 1)")
	}
	if input.TakerFee.IsNegative() || input.TakerFee.GreaterThanOrEqual(feeCeiling) {
		return utils.NewValidationError("taker_fee", "must be within [0, 1)")
	}

	var count int64
	err := db.WithContext(ctx).Model(&Instrument{}).
		Where("symbol = ? AND id <> ?", input.Symbol, id).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("symbol", "duplicate instrument symbol")
	}
	return nil
}

func ListInstruments(ctx context.Context, db *gorm.DB, filter InstrumentFilter) (*Page[Instrument], error) {
	q := ListQuery{SortKey: filter.SortKey, SortType: filter.SortType, Page: filter.Page}
	if symbol := strings.TrimSpace(filter.Symbol); symbol != "" {
		q.Where("symbol LIKE ?", "%"+strings.ToUpper(symbol)+"%")
	}
	if filter.IsActive != nil {
		q.Where("is_active = ?", *filter.IsActive)
	}
	return FindPage[Instrument](db.WithContext(ctx), q, instrumentSorts, "id")
}

func GetInstrument(ctx context.Context, db *gorm.DB, id int) (*Instrument, error) {
	var instrument Instrument
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&instrument).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &instrument, nil
}

func CreateInstrument(ctx context.Context, db *gorm.DB, input *NewInstrument) (*Instrument, error) {
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	instrument := Instrument{
		Symbol:      input.Symbol,
		BaseCoin:    input.BaseCoin,
		QuoteCoin:   input.QuoteCoin,
		TickSize:    input.TickSize,
		MinQuantity: input.MinQuantity,
		MakerFee:    input.MakerFee,
		TakerFee:    input.TakerFee,
		IsActive:    input.IsActive,
	}
	if instrument.IsActive == nil {
		instrument.IsActive = utils.NewTrue()
	}
	if err := db.WithContext(ctx).Create(&instrument).Error; err != nil {
		return nil, err
	}
	return &instrument, nil
}

func UpdateInstrument(ctx context.Context, db *gorm.DB, id int, input *NewInstrument) (*Instrument, error) {
	instrument, err := GetInstrument(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"symbol":       input.Symbol,
		"base_coin":    input.BaseCoin,
		"quote_coin":   input.QuoteCoin,
		"tick_size":    input.TickSize,
		"min_quantity": input.MinQuantity,
		"maker_fee":    input.MakerFee,
		"taker_fee":    input.TakerFee,
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if err := db.WithContext(ctx).Model(instrument).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetInstrument(ctx, db, id)
}
