package purchasebills

// PriceLockState is the lock state of a draft line's price field.
type PriceLockState string

const (
	PriceLocked   PriceLockState = "locked"
	PriceUnlocked PriceLockState = "unlocked"
)

// LockState reports the line's current price lock state.
func (l DraftLine) LockState() PriceLockState {
	if l.PriceLocked {
		return PriceLocked
	}
	return PriceUnlocked
}

// The transitions below are the only writers of PriceLocked and ManualPrice.
// A manual override is sticky: once set, lookup results no longer touch the
// price until the material or unit changes and the line is reset.

// lockWithQuote applies a successful lookup. It reports whether the line changed.
func lockWithQuote(line *DraftLine, quote PriceQuote) bool {
	if line.ManualPrice {
		return false
	}
	line.UnitPrice = quote.Price.String()
	line.PriceLocked = true
	return true
}

// unlockOnMiss applies a lookup that found no active price (or failed):
// the auto-filled price is cleared and manual entry is required.
func unlockOnMiss(line *DraftLine) bool {
	if line.ManualPrice {
		return false
	}
	line.UnitPrice = ""
	line.PriceLocked = false
	return true
}

// unlockByUser is the explicit Locked -> Unlocked action. The current price
// stays in the field as a starting point for the edit.
func unlockByUser(line *DraftLine) {
	line.PriceLocked = false
	line.ManualPrice = true
}

// editPrice applies a manual price entry. Locked prices are read-only.
func editPrice(line *DraftLine, price string) error {
	if line.PriceLocked {
		return ErrPriceLocked
	}
	line.UnitPrice = price
	line.ManualPrice = true
	return nil
}

// resetForMaterial starts a fresh line for the material, seeded with its
// default unit. The price starts Unlocked until a lookup resolves.
func resetForMaterial(materialID int64, defaultUnit string) DraftLine {
	return DraftLine{MasterMaterialID: materialID, Unit: defaultUnit}
}

// resetForUnit clears price state after a unit change; quantity is kept.
func resetForUnit(line *DraftLine, unit string) {
	line.Unit = unit
	line.UnitPrice = ""
	line.PriceLocked = false
	line.ManualPrice = false
}
