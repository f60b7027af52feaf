package purchaserequest

import (
	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

type ItemDTO struct {
	Name      string          `json:"name" validate:"required,max=255"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Vendor    string          `json:"vendor,omitempty" validate:"max=255"`
}

func (dto ItemDTO) toItem() Item {
	return Item{
		Name:      dto.Name,
		Quantity:  dto.Quantity,
		UnitPrice: dto.UnitPrice.Round(2),
		Vendor:    dto.Vendor,
	}
}

// CreateRequestDTO is the payload for a new purchase request. Amount is
// ignored when items are given, since it is recomputed from them.
type CreateRequestDTO struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=5000"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	Items       []ItemDTO       `json:"items" validate:"omitempty,dive"`
}

func (dto CreateRequestDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	return nil
}

// UpdateRequestDTO patches a pending request. Nil fields are left alone and
// a non-nil Items replaces every item.
type UpdateRequestDTO struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Items       *[]ItemDTO       `json:"items,omitempty"`
}

type itemList struct {
	Items []ItemDTO `json:"items" validate:"dive"`
}

func (dto UpdateRequestDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	if dto.Amount != nil && dto.Amount.IsNegative() {
		return validation.Field("amount", "amount must be at least 0", internal.ErrCodeInvalidAmount)
	}
	if dto.Items != nil {
		if err := validation.Struct(itemList{Items: *dto.Items}); err != nil {
			return err
		}
	}
	return nil
}

func (dto UpdateRequestDTO) empty() bool {
	return dto.Title == nil && dto.Description == nil && dto.Amount == nil && dto.Items == nil
}

type RejectRequestDTO struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func (dto RejectRequestDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	return nil
}

func itemsFromDTO(in []ItemDTO) []Item {
	out := make([]Item, 0, len(in))
	for _, it := range in {
		out = append(out, it.toItem())
	}
	return out
}
