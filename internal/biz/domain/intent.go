package domain

// Intent is the classified purpose of a buyer message
type Intent string

const (
	IntentPrice   Intent = "price"   // Bargaining
	IntentTech    Intent = "tech"    // Product usage / technical question
	IntentDefault Intent = "default" // Everything else
)

// AllIntents lists the intents a system prompt can be configured for
var AllIntents = []Intent{IntentPrice, IntentTech, IntentDefault}

// ParseIntent converts a string to an Intent, falling back to IntentDefault
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentPrice, IntentTech, IntentDefault:
		return Intent(s)
	}
	return IntentDefault
}

// Valid reports whether i is a known intent
func (i Intent) Valid() bool {
	switch i {
	case IntentPrice, IntentTech, IntentDefault:
		return true
	}
	return false
}
