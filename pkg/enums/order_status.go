package enums

// OrderStatus tracks the lifecycle of a placed order.
type OrderStatus string

const (
	OrderStatusPlaced   OrderStatus = "placed"
	OrderStatusCanceled OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusCanceled,
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
