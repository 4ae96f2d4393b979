package enums

import "fmt"

// HandoffPhase names the two custody transfers an order goes through.
type HandoffPhase string

const (
	// HandoffPhasePickup is the vendor→driver transfer. The assigned driver
	// verifies a vendor-issued code.
	HandoffPhasePickup HandoffPhase = "pickup"
	// HandoffPhaseDelivery is the driver→customer transfer. The customer
	// verifies a driver-presented code.
	HandoffPhaseDelivery HandoffPhase = "delivery"
)

// String implements fmt.Stringer.
func (h HandoffPhase) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HandoffPhase.
func (h HandoffPhase) IsValid() bool {
	return h == HandoffPhasePickup || h == HandoffPhaseDelivery
}

// PredecessorStatuses returns the order statuses from which this phase's
// verification may legally succeed. Anything else is a wrong-phase failure,
// which is also what makes a replayed code fail after the status advanced.
func (h HandoffPhase) PredecessorStatuses() []OrderStatus {
	switch h {
	case HandoffPhasePickup:
		return []OrderStatus{OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady}
	case HandoffPhaseDelivery:
		return []OrderStatus{OrderStatusPickedUp, OrderStatusInTransit, OrderStatusOutForDelivery}
	default:
		return nil
	}
}

// TerminalStatus returns the status a successful verification moves the order to.
func (h HandoffPhase) TerminalStatus() OrderStatus {
	switch h {
	case HandoffPhasePickup:
		return OrderStatusPickedUp
	case HandoffPhaseDelivery:
		return OrderStatusDelivered
	default:
		return ""
	}
}

// ParseHandoffPhase converts raw input into a HandoffPhase.
func ParseHandoffPhase(value string) (HandoffPhase, error) {
	switch HandoffPhase(value) {
	case HandoffPhasePickup:
		return HandoffPhasePickup, nil
	case HandoffPhaseDelivery:
		return HandoffPhaseDelivery, nil
	default:
		return "", fmt.Errorf("invalid handoff phase %q", value)
	}
}

// HandoffMethod records how a completed handoff was proven.
type HandoffMethod string

const (
	HandoffMethodOTP    HandoffMethod = "otp"
	HandoffMethodQR     HandoffMethod = "qr"
	HandoffMethodManual HandoffMethod = "manual"
)

// String implements fmt.Stringer.
func (h HandoffMethod) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HandoffMethod.
func (h HandoffMethod) IsValid() bool {
	switch h {
	case HandoffMethodOTP, HandoffMethodQR, HandoffMethodManual:
		return true
	default:
		return false
	}
}
