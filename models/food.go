package models

import (
	"strconv"
	"strings"
)

// foodSeparator splits the spreadsheet's food selection strings, which look
// like "2 - £3" (quantity, then unit price).
const foodSeparator = " - £"

// FoodQuantity extracts the ordered quantity from a food selection string.
// Nil or empty strings and non-numeric leading tokens count as 0.
func FoodQuantity(selection *string) int {
	if selection == nil {
		return 0
	}
	head := strings.SplitN(*selection, foodSeparator, 2)[0]
	qty, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || qty < 0 {
		return 0
	}
	return qty
}
