package intent

// Type discriminates the intent variant.
type Type string

const (
	TypePurchase Type = "purchase"
	TypeUnknown  Type = "unknown"
)

// Purchase is the structured form of "I want to buy N of X".
type Purchase struct {
	ProductName string `json:"product_name" validate:"required"`
	Quantity    int    `json:"quantity"`
}

// Unknown carries the reason a message could not be interpreted.
type Unknown struct {
	Reason string `json:"reason" validate:"required"`
}

// Intent is a tagged variant: exactly the arm matching Type is set.
// Callers switch on Type; there is no third case.
type Intent struct {
	Type     Type
	Purchase *Purchase
	Unknown  *Unknown
}

// Unrecognized builds the Unknown arm. Every parser failure mode funnels
// through here so the workflow has a single failure branch to handle.
func Unrecognized(reason string) Intent {
	return Intent{Type: TypeUnknown, Unknown: &Unknown{Reason: reason}}
}
