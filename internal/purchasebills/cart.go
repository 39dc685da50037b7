package purchasebills

import "github.com/shopspring/decimal"

// Cart is the ordered collection of validated draft lines. Order is
// insertion order and only matters for display.
type Cart struct {
	lines []CartLine
}

// Add appends a snapshot.
func (c *Cart) Add(line CartLine) {
	c.lines = append(c.lines, line)
}

// Remove deletes the entry at index.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:index:index], c.lines[index+1:]...)
	return nil
}

// Lines returns a copy of the entries.
func (c *Cart) Lines() []CartLine {
	return append([]CartLine(nil), c.lines...)
}

func (c *Cart) Len() int { return len(c.lines) }

// Total sums the line totals. It is informational; the server recomputes it.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

func (c *Cart) Clear() {
	c.lines = nil
}
