package game

import (
	"math/rand/v2"

	"reflexduel/internal/domain"
)

// Beats reports whether a beats b: rock beats scissors, paper beats rock,
// scissors beats paper.
func Beats(a, b domain.Symbol) bool {
	switch a {
	case domain.Rock:
		return b == domain.Scissors
	case domain.Paper:
		return b == domain.Rock
	case domain.Scissors:
		return b == domain.Paper
	}
	return false
}

// OtherTwo returns the two symbols that differ from target, in cycle order.
func OtherTwo(target domain.Symbol) []domain.Symbol {
	out := make([]domain.Symbol, 0, 2)
	for _, s := range domain.Symbols {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// ValidResponse reports whether choice is one of the two answers allowed
// against target.
func ValidResponse(target, choice domain.Symbol) bool {
	return choice.Valid() && choice != target
}

// DrawSymbol picks a target uniformly from the symbol set.
func DrawSymbol() domain.Symbol {
	return domain.Symbols[rand.IntN(len(domain.Symbols))]
}

// Render styles understood by the UI.
const (
	StyleLetter = "letter"
	StyleEmoji  = "emoji"
	StyleWord   = "word"
)

var (
	emoji = map[domain.Symbol]string{domain.Rock: "🪨", domain.Paper: "📄", domain.Scissors: "✂️"}
	words = map[domain.Symbol]string{domain.Rock: "rock", domain.Paper: "paper", domain.Scissors: "scissors"}
)

// Render formats a symbol for display. Unknown styles fall back to the letter.
func Render(s domain.Symbol, style string) string {
	switch style {
	case StyleEmoji:
		if v, ok := emoji[s]; ok {
			return v
		}
	case StyleWord:
		if v, ok := words[s]; ok {
			return v
		}
	}
	return string(s)
}

// ParseSymbol accepts a letter or a word ("R", "rock", "paper", ...).
func ParseSymbol(v string) (domain.Symbol, bool) {
	switch v {
	case "R", "r", "rock":
		return domain.Rock, true
	case "P", "p", "paper":
		return domain.Paper, true
	case "S", "s", "scissors":
		return domain.Scissors, true
	}
	return "", false
}
