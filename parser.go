package main

import (
	"regexp"
	"strconv"
	"strings"
)

const registerCommandPrefix = "!rv"

// A trailing token of 1-2 digits whose value is at most maxManualQuantity is
// read as the quantity; anything longer or larger is part of the phone
// number. This single heuristic is the tie-break for every phone formatting
// variant (spaces, parentheses, dashes, leading +).
const (
	maxManualQuantity = 20
	minNumberDigits   = 8
)

var quantityTokenRegex = regexp.MustCompile(`^\d{1,2}$`)
var nonDigitRegex = regexp.MustCompile(`\D`)

type RegisterCommand struct {
	Number   string
	Quantity int
}

// ParseRegisterCommand parses the manual sale registration command
// ("!rv <number> [quantity]"). Returns false for a missing prefix, empty
// arguments, or a number with fewer than 8 digits. The quantity is never
// below 1: an explicit 0 is consumed as the quantity token (so it does not
// leak into the number) and floored, matching the append invariant.
func ParseRegisterCommand(body string) (RegisterCommand, bool) {
	if !strings.HasPrefix(strings.ToLower(body), registerCommandPrefix) {
		return RegisterCommand{}, false
	}

	input := strings.TrimSpace(body[len(registerCommandPrefix):])
	if input == "" {
		return RegisterCommand{}, false
	}

	parts := strings.Fields(input)
	rawNumber := input
	quantity := 1

	if len(parts) > 1 {
		last := parts[len(parts)-1]
		if quantityTokenRegex.MatchString(last) {
			if n, err := strconv.Atoi(last); err == nil && n <= maxManualQuantity {
				quantity = clampQuantity(n)
				rawNumber = strings.Join(parts[:len(parts)-1], "")
			} else {
				rawNumber = strings.Join(parts, "")
			}
		} else {
			rawNumber = strings.Join(parts, "")
		}
	}

	number := nonDigitRegex.ReplaceAllString(rawNumber, "")
	if len(number) < minNumberDigits {
		return RegisterCommand{}, false
	}

	return RegisterCommand{Number: number, Quantity: quantity}, true
}
