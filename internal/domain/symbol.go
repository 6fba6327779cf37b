package domain

// Symbol is one of the three values of the rock-paper-scissors cycle.
type Symbol string

const (
	Rock     Symbol = "R"
	Paper    Symbol = "P"
	Scissors Symbol = "S"
)

// Symbols lists the cycle in a fixed order.
var Symbols = [3]Symbol{Rock, Paper, Scissors}

func (s Symbol) Valid() bool {
	return s == Rock || s == Paper || s == Scissors
}

func (s Symbol) String() string {
	return string(s)
}
