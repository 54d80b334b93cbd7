package enums

import "slices"

// PaymentGateway names the external gateway that confirmed an online payment.
type PaymentGateway string

const (
	PaymentGatewayStripe   PaymentGateway = "stripe"
	PaymentGatewayRazorpay PaymentGateway = "razorpay"
)

var validPaymentGateways = []PaymentGateway{
	PaymentGatewayStripe,
	PaymentGatewayRazorpay,
}

// String implements fmt.Stringer.
func (p PaymentGateway) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentGateway.
func (p PaymentGateway) IsValid() bool {
	return slices.Contains(validPaymentGateways, p)
}

// ParsePaymentGateway converts raw input into a PaymentGateway.
func ParsePaymentGateway(value string) (PaymentGateway, error) {
	return parse(value, validPaymentGateways, "payment gateway")
}
